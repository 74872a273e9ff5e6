package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/becomeliminal/recall-go-sdk/engine"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// sessionProps are the schema properties the agent loop overwrites with the
// session's identity before every call. Every memory tool declares both.
func sessionProps() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    StringProperty("The ID of the user. Filled in automatically."),
		"session_id": StringProperty("The current session ID. Filled in automatically."),
	}
}

func withSessionProps(props map[string]interface{}) map[string]interface{} {
	merged := sessionProps()
	for k, v := range props {
		merged[k] = v
	}
	return merged
}

// MemoryTools returns the memory skill set bound to a memory service.
func MemoryTools(svc *memory.Service) []engine.Tool {
	return []engine.Tool{
		saveMemoryTool(svc),
		searchMemoryTool(svc),
		forgetRecentTool(svc),
		deleteByContentTool(svc),
		memoryStatusTool(svc),
		browseDiaryTool(svc),
	}
}

type saveMemoryArgs struct {
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	Content    string `json:"content"`
	MemoryType string `json:"memory_type"`
	Category   string `json:"category"`
}

func saveMemoryTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name: "save_memory",
		Description: "Save information to Long-Term Memory. " +
			"Use 'core' for vital facts about the user (name, preferences); these are ALWAYS loaded into context. " +
			"Use 'episodic' for general events or discussions; these are only retrieved when you search for them.",
		Parameters: ObjectSchema(withSessionProps(map[string]interface{}{
			"content":     StringProperty("The content to remember."),
			"memory_type": StringEnumProperty("'core' for permanent facts, 'episodic' for general history.", "core", "episodic"),
			"category":    StringProperty("A tag for organization (e.g. 'personal', 'tech', 'work')."),
		}), "content"),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args saveMemoryArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			if strings.TrimSpace(args.Content) == "" {
				return "", fmt.Errorf("content is required")
			}
			if args.Category == "" {
				args.Category = "general"
			}

			typ := memory.TypeEpisodic
			importance := 5
			if args.MemoryType == "core" {
				typ = memory.TypeCoreFact
				importance = 10
			}

			_, err := svc.LongTerm().Save(ctx, args.Content, typ, importance, map[string]string{
				"user_id":  args.UserID,
				"category": args.Category,
			})
			if err != nil {
				return "", fmt.Errorf("save memory: %w", err)
			}
			return fmt.Sprintf("Saved (%s): %s", orDefault(args.MemoryType, "episodic"), args.Content), nil
		},
	}
}

type searchMemoryArgs struct {
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	Query      string `json:"query"`
	MemoryType string `json:"memory_type"`
}

func searchMemoryTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name:        "search_memory",
		Description: "Search through Long-Term Memory for specific details.",
		Parameters: ObjectSchema(withSessionProps(map[string]interface{}{
			"query":       StringProperty("The semantic search query."),
			"memory_type": StringEnumProperty("Filter by type.", "core_fact", "episodic", "general", "summary", "all"),
		}), "query"),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args searchMemoryArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			where := map[string]string{"user_id": args.UserID}
			if args.MemoryType != "" && args.MemoryType != "all" {
				where["type"] = args.MemoryType
			}
			records, err := svc.LongTerm().SearchRecords(ctx, args.Query, 5, where)
			if err != nil {
				return "", fmt.Errorf("search memory: %w", err)
			}
			if len(records) == 0 {
				return "No relevant memories found in long-term storage.", nil
			}

			var b strings.Builder
			b.WriteString("Found these memories:")
			for _, rec := range records {
				b.WriteString("\n- ")
				b.WriteString(rec.Text)
			}
			return b.String(), nil
		},
	}
}

type sessionArgs struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func forgetRecentTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name:        "forget_recent_conversation",
		Description: "Clears the short-term conversation window for this session.",
		Parameters:  ObjectSchema(sessionProps()),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args sessionArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			if err := svc.ShortTerm().Clear(ctx, args.SessionID); err != nil {
				return "", fmt.Errorf("clear history: %w", err)
			}
			return "Short-term memory wiped for this session. Starting fresh.", nil
		},
	}
}

type deleteByContentArgs struct {
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	SearchQuery string `json:"search_query"`
}

func deleteByContentTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name:        "delete_memory_by_content",
		Description: "Delete a memory from Long-Term storage. Finds the closest match to the query and removes it.",
		Parameters: ObjectSchema(withSessionProps(map[string]interface{}{
			"search_query": StringProperty("Query to find the memory to delete."),
		}), "search_query"),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args deleteByContentArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			records, err := svc.LongTerm().SearchRecords(ctx, args.SearchQuery, 1, map[string]string{
				"user_id": args.UserID,
			})
			if err != nil {
				return "", fmt.Errorf("find memory: %w", err)
			}
			if len(records) == 0 {
				return "No matching memory found to delete.", nil
			}

			if err := svc.LongTerm().Delete(ctx, records[0].ID); err != nil {
				return "", fmt.Errorf("delete memory: %w", err)
			}
			return fmt.Sprintf("Deleted memory: %s", truncate(records[0].Text, 100)), nil
		},
	}
}

func memoryStatusTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name:        "get_memory_status",
		Description: "Get statistics about the user's memory storage.",
		Parameters:  ObjectSchema(sessionProps()),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args sessionArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			stats, err := svc.LongTerm().Stats(ctx, args.UserID)
			if err != nil {
				return "", fmt.Errorf("long-term stats: %w", err)
			}
			count, err := svc.ShortTerm().Count(ctx, args.SessionID)
			if err != nil {
				return "", fmt.Errorf("short-term count: %w", err)
			}

			return fmt.Sprintf(`Memory Status:

Long-Term Storage:
- Core Facts: %d (always loaded)
- Episodic Memories: %d (searchable)
- General Memories: %d (searchable)
- Summaries: %d (diary)

Short-Term Buffer:
- Recent Messages: %d (in this session)`,
				stats[memory.TypeCoreFact],
				stats[memory.TypeEpisodic],
				stats[memory.TypeGeneral],
				stats[memory.TypeSummary],
				count), nil
		},
	}
}

type browseDiaryArgs struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
	Query     string `json:"query"`
}

func browseDiaryTool(svc *memory.Service) engine.Tool {
	return engine.Tool{
		Name: "browse_diary",
		Description: "Browse or search the assistant's diary (accumulated session summaries). " +
			"Use this to answer questions about the past, specific days, or recurring topics.",
		Parameters: ObjectSchema(withSessionProps(map[string]interface{}{
			"date":  StringProperty("Optional. Specific date to look up in YYYY-MM-DD format."),
			"query": StringProperty("Optional. Semantic search query to find relevant past summaries."),
		})),
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args browseDiaryArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			switch {
			case args.Date != "":
				entries, err := svc.LongTerm().GetByFilter(ctx, map[string]string{
					"user_id": args.UserID,
					"type":    string(memory.TypeSummary),
					"date":    args.Date,
				}, 10)
				if err != nil {
					return "", fmt.Errorf("browse diary: %w", err)
				}
				if len(entries) == 0 {
					return fmt.Sprintf("I don't have any diary entries for %s.", args.Date), nil
				}
				return fmt.Sprintf("Diary entries for %s:\n%s", args.Date, bulleted(entries)), nil

			case args.Query != "":
				entries, err := svc.LongTerm().Search(ctx, args.Query, 5, memory.TypeSummary)
				if err != nil {
					return "", fmt.Errorf("browse diary: %w", err)
				}
				if len(entries) == 0 {
					return fmt.Sprintf("No diary entries found matching %q.", args.Query), nil
				}
				return "Relevant diary entries:\n" + bulleted(entries), nil

			default:
				entries, err := svc.LongTerm().GetByFilter(ctx, map[string]string{
					"user_id": args.UserID,
					"type":    string(memory.TypeSummary),
				}, 5)
				if err != nil {
					return "", fmt.Errorf("browse diary: %w", err)
				}
				if len(entries) == 0 {
					return "I haven't written any diary entries yet.", nil
				}
				return "Here are some recent entries from my diary:\n" + bulleted(entries), nil
			}
		},
	}
}

func bulleted(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
