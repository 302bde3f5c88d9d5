package eventstream_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/eventstream/nop"
)

var _ = Describe("NewBranchEvent", func() {
	var b *conversation.Branch

	BeforeEach(func() {
		parent := conversation.NewBranch("s-1", nil, "main", "", 0)
		b = conversation.NewBranch("s-1", &parent.ID, "alt", "", 2)
	})

	It("snapshots the branch under the current schema version", func() {
		ev := eventstream.NewBranchEvent(eventstream.EventTypeBranchCreated, b, 5)
		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal(eventstream.EventTypeBranchCreated))
		Expect(ev.EventID).NotTo(BeEmpty())
		Expect(ev.EmittedAt).To(BeTemporally("~", time.Now(), time.Second))
		Expect(ev.SessionID).To(Equal("s-1"))
		Expect(ev.BranchID).To(Equal(b.ID))
		Expect(ev.ParentID).To(Equal(b.ParentID))
		Expect(ev.Name).To(Equal("alt"))
		Expect(ev.Status).To(Equal(conversation.StatusActive))
		Expect(ev.MessageCount).To(Equal(5))
	})

	It("assigns a fresh event id per event", func() {
		first := eventstream.NewBranchEvent(eventstream.EventTypeBranchArchived, b, 0)
		second := eventstream.NewBranchEvent(eventstream.EventTypeBranchArchived, b, 0)
		Expect(first.EventID).NotTo(Equal(second.EventID))
	})

	It("omits the merge target unless set", func() {
		ev := eventstream.NewBranchEvent(eventstream.EventTypeBranchCreated, b, 1)

		raw, err := json.Marshal(ev)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("target_branch_id"))

		ev.EventType = eventstream.EventTypeBranchMerged
		ev.TargetBranchID = "t-1"
		raw, err = json.Marshal(ev)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"target_branch_id":"t-1"`))
	})
})

var _ = Describe("nop.Publisher", func() {
	It("accepts events and rejects nil", func() {
		pub := nop.NewPublisher()
		defer pub.Close()

		b := conversation.NewBranch("s-1", nil, "main", "", 0)
		ev := eventstream.NewBranchEvent(eventstream.EventTypeBranchCreated, b, 0)
		Expect(pub.PublishBranchEvent(context.Background(), ev)).To(Succeed())
		Expect(pub.PublishBranchEvent(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})
})
