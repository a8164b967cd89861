// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Inspect and manage stored chats",
	Long: `Chat reads the SQLite chat history used by the HTTP API. Use
subcommands to list chats, show or export one, delete one, or search
past research messages.`,
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *chat.Store) error {
			chats, err := s.ListChats(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
			for _, c := range chats {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a chat's messages as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *chat.Store) error {
			c, err := s.GetChat(cmd.Context(), id)
			if err != nil {
				return err
			}
			msgs, err := s.Messages(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n", c.Title)
			for _, m := range msgs {
				fmt.Printf("\n> %s\n\n%s\n", m.Query, m.Report)
			}
			return nil
		})
	},
}

var chatExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a chat with its messages and documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return withStore(func(s *chat.Store) error {
			return s.Export(cmd.Context(), id, chat.Format(format), os.Stdout)
		})
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chat, its messages, and its uploaded files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *chat.Store) error {
			if err := s.DeleteChat(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Deleted chat %d\n", id)
			return nil
		})
	},
}

var chatSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over past queries and reports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		return withStore(func(s *chat.Store) error {
			msgs, err := s.SearchMessages(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			for _, m := range msgs {
				fmt.Printf("chat %d, message %d: %s\n", m.ChatID, m.ID, m.Query)
			}
			return nil
		})
	},
}

// withStore opens the configured chat store for the duration of fn.
func withStore(fn func(*chat.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := chat.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func init() {
	chatExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	chatSearchCmd.Flags().Int("limit", 0, "maximum results (0 = default)")
	chatSearchCmd.Flags().Bool("json", false, "output results as JSON")

	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatShowCmd)
	chatCmd.AddCommand(chatExportCmd)
	chatCmd.AddCommand(chatDeleteCmd)
	chatCmd.AddCommand(chatSearchCmd)

	rootCmd.AddCommand(chatCmd)
}
