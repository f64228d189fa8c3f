package cmd

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	pingURL     string
	pingMessage string
	pingTimeout time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a message to an echo server and wait for the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		dialer := websocket.Dialer{HandshakeTimeout: pingTimeout}
		ws, resp, err := dialer.Dial(pingURL, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", pingURL, err)
		}
		defer ws.Close()

		start := time.Now()
		if err := ws.WriteMessage(websocket.TextMessage, []byte(pingMessage)); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(pingTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("no reply: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "server: %s\n", resp.Header.Get("Server"))
		fmt.Fprintf(cmd.OutOrStdout(), "reply:  %s (%s)\n", data, time.Since(start).Round(time.Microsecond))

		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	},
}

func init() {
	pingCmd.Flags().StringVar(&pingURL, "url", "ws://localhost:9000/", "WebSocket URL of the echo server")
	pingCmd.Flags().StringVarP(&pingMessage, "message", "m", "ping", "Message to send")
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Handshake and reply timeout")
	rootCmd.AddCommand(pingCmd)
}
