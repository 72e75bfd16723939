// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	kvcli set mykey "hello world"       --server http://localhost:8080
//	kvcli get mykey                     --server http://localhost:8080
//	kvcli delete mykey                  --server http://localhost:8080
//	kvcli bulkset a=1 b=2               --server http://localhost:8080
//	kvcli search-text "hello world" --mode or
//	kvcli search-similar "a query" --top-k 3
//	kvcli stats
//	kvcli health
package main

import (
	"context"
	"durakv/internal/client"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    time.Duration
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for durakv",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "durakv server address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")
	root.PersistentFlags().BoolVar(&debug, "debug", false,
		"set the debug flag on writes (exercises the snapshot-skip test hook)")

	root.AddCommand(setCmd(), getCmd(), deleteCmd(), bulkSetCmd(),
		searchTextCmd(), searchSimilarCmd(), statsCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── set ──────────────────────────────────────────────────────────────────────

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Set(context.Background(), args[0], args[1], debug)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── get ──────────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Get(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── delete ───────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Delete(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── bulkset ──────────────────────────────────────────────────────────────────

func bulkSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulkset <key=value>...",
		Short: "Store many key-value pairs as a single atomic write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([][2]string, 0, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid pair %q, expected key=value", arg)
				}
				items = append(items, [2]string{k, v})
			}
			c := client.New(serverAddr, timeout)
			resp, err := c.BulkSet(context.Background(), items, debug)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── search-text ──────────────────────────────────────────────────────────────

func searchTextCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "search-text <query>",
		Short: "Find keys whose values match a tokenized text query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.SearchText(context.Background(), args[0], strings.ToUpper(mode))
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "and", "match mode: and or or")
	return cmd
}

// ─── search-similar ───────────────────────────────────────────────────────────

func searchSimilarCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search-similar <query>",
		Short: "Find keys with the most semantically similar values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			results, err := c.SearchSimilar(context.Background(), args[0], topK)
			if err != nil {
				return err
			}
			prettyPrint(results)
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 5, "number of results to return")
	return cmd
}

// ─── stats / health ───────────────────────────────────────────────────────────

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store/node stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show node health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Health(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
