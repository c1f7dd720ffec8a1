// actionctl is a small test client for the action server: it runs the
// scripted command scenario or just watches the event stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:   "actionctl",
		Short: "Test client for the action push server",
	}
	root.PersistentFlags().StringVarP(&serverURL, "url", "u", "ws://127.0.0.1:3100/api/ws", "server websocket URL")

	root.AddCommand(testCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the scripted scenario: echo, broadcast, heartbeat, unknown, playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			go receive(ctx, c)

			steps := []struct {
				title   string
				payload map[string]any
			}{
				{"echo", map[string]any{"type": "echo", "message": "hello from actionctl"}},
				{"broadcast", map[string]any{"type": "broadcast", "message": "greetings, everyone!"}},
				{"heartbeat", map[string]any{"type": "heartbeat"}},
				{"unknown type", map[string]any{"type": "definitely_not_a_command", "data": "test"}},
				{"start playback", map[string]any{"type": "actionStart", "actionGroupID": 42}},
			}
			for _, step := range steps {
				color.Cyan("=== %s ===", step.title)
				if err := send(c, step.payload); err != nil {
					return err
				}
				if !sleep(ctx, time.Second) {
					return nil
				}
			}

			// Let a couple of progress events through, then stop the action.
			if !sleep(ctx, 3*time.Second) {
				return nil
			}
			color.Cyan("=== stop playback ===")
			if err := send(c, map[string]any{"type": "actionStop", "actionGroupID": 42}); err != nil {
				return err
			}
			sleep(ctx, 2*time.Second)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Hold a connection open and print every pushed event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			receive(ctx, c)
			return nil
		},
	}
}

func connect(ctx context.Context) (*websocket.Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", serverURL, err)
	}
	color.Green("connected to %s", serverURL)
	return c, nil
}

func send(c *websocket.Conn, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	color.Yellow("-> %s", data)
	return c.WriteMessage(websocket.TextMessage, data)
}

func receive(ctx context.Context, c *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.ReadMessage()
		if err != nil {
			color.Red("connection closed: %v", err)
			return
		}
		var pretty map[string]any
		if json.Unmarshal(data, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("<- %s\n", out)
		} else {
			fmt.Printf("<- %s\n", data)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
