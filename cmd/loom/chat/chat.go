// Package chatcmder provides the chat command for interactive LLM chat on
// the current branch.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	target string
	model  string
	debug  bool

	logger *slog.Logger
}

// ollamaRequest is the Ollama-native request format. The chat command speaks
// directly to an Ollama-compatible endpoint.
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaMessage is an Ollama-native message.
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaStreamChunk represents a single streaming response chunk from Ollama.
type ollamaStreamChunk struct {
	Model     string        `json:"model"`
	CreatedAt time.Time     `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
}

const chatLongDesc string = `Start an interactive chat session on the current branch.

Sends messages to an Ollama-compatible endpoint and records every turn on
the branch the workspace points at. The conversation resumes from the
branch's existing history, so forking a branch and chatting on it explores
an alternative without touching the parent.

While a reply is streaming the branch is held busy; a second writer gets a
busy error instead of interleaving turns.

Examples:
  loom chat
  loom chat --model llama3.2
  loom chat --target http://localhost:11434`

const chatShortDesc string = "Interactive LLM chat on the current branch"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	flags := config.DefaultFlags()

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd, configDir)
		},
	}

	config.AddStringFlag(cmd, flags, config.FlagChatTarget, &cmder.target)
	config.AddStringFlag(cmd, flags, config.FlagChatModel, &cmder.model)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug))

	ws, err := workspace.Open(configDir, c.logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()

	// Config fills in anything the flags left at their defaults.
	if !cmd.Flags().Changed("target") && ws.Config.Chat.Target != "" {
		c.target = ws.Config.Chat.Target
	}
	if !cmd.Flags().Changed("model") && ws.Config.Chat.Model != "" {
		c.model = ws.Config.Chat.Model
	}

	pointer, err := ws.Position(ctx)
	if err != nil {
		return fmt.Errorf("no current session: %w (create one with: loom session new <name>)", err)
	}

	turns, err := ws.Service.History(ctx, pointer.BranchID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	// Replay the branch history into the model's message window.
	var messages []ollamaMessage
	for _, turn := range turns {
		messages = append(messages, ollamaMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	fmt.Println()
	if len(turns) > 0 {
		fmt.Printf("  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(pointer.BranchName),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(turns))),
		)
	} else {
		fmt.Printf("  %s New conversation on %s\n",
			cliui.DimStyle.Render("●"),
			cliui.NameStyle.Render(pointer.BranchName),
		)
	}

	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(c.model),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		assistantContent, err := c.exchange(ctx, ws, pointer.BranchID, messages, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		messages = append(messages,
			ollamaMessage{Role: "user", Content: input},
			ollamaMessage{Role: "assistant", Content: assistantContent},
		)

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// exchange records the user turn, holds the branch busy while the model
// streams, and records the assistant turn. Nothing is persisted if the model
// call fails before producing output.
func (c *chatCommander) exchange(ctx context.Context, ws *workspace.Workspace, branchID string, history []ollamaMessage, input string) (string, error) {
	reply, err := ws.Service.BeginReply(ctx, branchID)
	if err != nil {
		return "", err
	}
	defer reply.Close()

	window := append(append([]ollamaMessage{}, history...), ollamaMessage{
		Role:    "user",
		Content: input,
	})

	assistantContent, err := c.sendAndStream(ctx, window)
	if err != nil {
		return "", err
	}

	if _, err := reply.Append(ctx, conversation.RoleUser, input); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}
	if _, err := reply.Append(ctx, conversation.RoleAssistant, assistantContent); err != nil {
		return "", fmt.Errorf("recording assistant turn: %w", err)
	}

	return assistantContent, nil
}

// sendAndStream sends a chat request to the model endpoint and streams the
// response to stdout. Returns the full assistant response text.
func (c *chatCommander) sendAndStream(ctx context.Context, messages []ollamaMessage) (string, error) {
	reqBody := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		"target", c.target,
		"model", c.model,
		"message_count", len(messages),
	)

	url := c.target + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	fmt.Print(assistantPrompt)

	var fullContent strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk ollamaStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.logger.Debug("failed to parse stream chunk",
				"err", err,
				"line", string(line),
			)
			continue
		}

		if chunk.Message.Content != "" {
			fmt.Print(chunk.Message.Content)
			fullContent.WriteString(chunk.Message.Content)
		}

		if chunk.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fullContent.String(), fmt.Errorf("reading stream: %w", err)
	}

	return fullContent.String(), nil
}
