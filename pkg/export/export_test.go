package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/export"
)

func sampleBranch() export.BranchExport {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &conversation.Branch{
		ID:          "b-1",
		SessionID:   "s-1",
		Name:        "main",
		Description: "the trunk",
		Status:      conversation.StatusActive,
		CreatedAt:   created,
	}
	turn := func(seq int, role conversation.Role, content string) *conversation.Turn {
		return &conversation.Turn{
			Sequence: seq,
			Message: conversation.Message{
				ID:        conversation.NewID(),
				SessionID: "s-1",
				Role:      role,
				Content:   content,
				CreatedAt: created,
			},
		}
	}
	return export.BranchExport{
		Branch: b,
		Turns: []*conversation.Turn{
			turn(1, conversation.RoleUser, "design a rate limiter"),
			turn(2, conversation.RoleAssistant, "token bucket, start simple"),
		},
	}
}

var _ = Describe("ParseFormat", func() {
	It("accepts canonical names and aliases", func() {
		for in, want := range map[string]export.Format{
			"json":     export.FormatJSON,
			"JSON":     export.FormatJSON,
			"markdown": export.FormatMarkdown,
			"md":       export.FormatMarkdown,
			"csv":      export.FormatCSV,
			"text":     export.FormatText,
			"txt":      export.FormatText,
			"plain":    export.FormatText,
		} {
			got, err := export.ParseFormat(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})

	It("rejects unknown names", func() {
		_, err := export.ParseFormat("yaml")
		Expect(err).To(MatchError(ContainSubstring("unknown export format")))
	})
})

var _ = Describe("Write", func() {
	It("emits parseable JSON with the full payload", func() {
		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{sampleBranch()}, export.FormatJSON)).To(Succeed())

		var payload struct {
			ExportedAt time.Time             `json:"exported_at"`
			Branches   []export.BranchExport `json:"branches"`
		}
		Expect(json.Unmarshal(buf.Bytes(), &payload)).To(Succeed())
		Expect(payload.Branches).To(HaveLen(1))
		Expect(payload.Branches[0].Branch.Name).To(Equal("main"))
		Expect(payload.Branches[0].Turns).To(HaveLen(2))
		Expect(payload.ExportedAt).NotTo(BeZero())
	})

	It("renders markdown with a heading per branch", func() {
		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{sampleBranch()}, export.FormatMarkdown)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("## main"))
		Expect(out).To(ContainSubstring("_the trunk_"))
		Expect(out).To(ContainSubstring("- Messages: 2"))
		Expect(out).To(ContainSubstring("**user** (1):"))
		Expect(out).To(ContainSubstring("design a rate limiter"))
	})

	It("emits one CSV row per turn plus a header", func() {
		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{sampleBranch()}, export.FormatCSV)).To(Succeed())

		records, err := csv.NewReader(&buf).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(3))
		Expect(records[0]).To(Equal([]string{"branch_id", "branch_name", "sequence", "role", "content", "created_at"}))
		Expect(records[1][2]).To(Equal("1"))
		Expect(records[2][3]).To(Equal("assistant"))
	})

	It("handles messages containing commas and newlines in CSV", func() {
		be := sampleBranch()
		be.Turns[0].Content = "first line,\nsecond line"

		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{be}, export.FormatCSV)).To(Succeed())

		records, err := csv.NewReader(&buf).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(records[1][4]).To(Equal("first line,\nsecond line"))
	})

	It("renders plain text transcripts", func() {
		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{sampleBranch()}, export.FormatText)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("=== main (active) ==="))
		Expect(out).To(ContainSubstring("[user] design a rate limiter"))
		Expect(out).To(ContainSubstring("[assistant] token bucket, start simple"))
	})

	It("separates multiple branches", func() {
		first := sampleBranch()
		second := sampleBranch()
		second.Branch = &conversation.Branch{
			ID: "b-2", SessionID: "s-1", Name: "alt",
			Status: conversation.StatusArchived, CreatedAt: first.Branch.CreatedAt,
		}

		var buf bytes.Buffer
		Expect(export.Write(&buf, []export.BranchExport{first, second}, export.FormatMarkdown)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("## main"))
		Expect(buf.String()).To(ContainSubstring("## alt"))
	})

	It("rejects an unknown format", func() {
		var buf bytes.Buffer
		err := export.Write(&buf, nil, export.Format("yaml"))
		Expect(err).To(HaveOccurred())
	})
})
