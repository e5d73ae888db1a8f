// Command streamcli is a development client for the interview server.
// It authenticates an agent, opens the WebSocket endpoint, streams a raw
// PCM file as audio-data frames, and prints every event the server emits.
//
// Usage:
//
//	go run ./cmd/streamcli -server localhost:8080 -serial KAIWA001 -secret secret123 -audio visit.pcm
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

const chunkSize = 3200 // 100ms of 16kHz 16-bit mono PCM

type authRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

func main() {
	server := flag.String("server", "localhost:8080", "server host:port")
	serial := flag.String("serial", "KAIWA001", "agent serial number")
	secret := flag.String("secret", "secret123", "agent secret")
	audioPath := flag.String("audio", "", "raw PCM file to stream (optional)")
	text := flag.String("text", "", "send a text turn instead of audio (optional)")
	flag.Parse()

	token, err := authenticate(*server, *serial, *secret)
	if err != nil {
		fmt.Fprintln(os.Stderr, "auth failed:", err)
		os.Exit(1)
	}
	fmt.Println("authenticated")

	wsURL := url.URL{Scheme: "ws", Host: *server, Path: "/ws", RawQuery: "token=" + token}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial failed:", err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				fmt.Fprintln(os.Stderr, "read:", err)
				return
			}
			printEvent(message)
		}
	}()

	send(conn, map[string]interface{}{"type": "start-listening"})

	switch {
	case *text != "":
		send(conn, map[string]interface{}{"type": "text-input", "text": *text})
	case *audioPath != "":
		if err := streamFile(conn, *audioPath); err != nil {
			fmt.Fprintln(os.Stderr, "stream:", err)
		}
		send(conn, map[string]interface{}{"type": "stop-listening"})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func authenticate(server, serial, secret string) (string, error) {
	body, _ := json.Marshal(authRequest{SerialNumber: serial, SecretKey: secret})
	resp, err := http.Post("http://"+server+"/api/v1/agents/auth", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", err
	}
	return auth.Token, nil
}

func streamFile(conn *websocket.Conn, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("streaming %d bytes\n", len(data))
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data[off:end]); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func send(conn *websocket.Conn, msg map[string]interface{}) {
	payload, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
	}
}

func printEvent(raw []byte) {
	var event map[string]interface{}
	if err := json.Unmarshal(raw, &event); err != nil {
		fmt.Println("<-", string(raw))
		return
	}
	eventType, _ := event["type"].(string)
	switch eventType {
	case "ai-audio":
		audio, _ := event["audio"].(string)
		fmt.Printf("<- ai-audio (%d bytes base64, format=%v)\n", len(audio), event["format"])
	default:
		pretty, _ := json.Marshal(event)
		fmt.Println("<-", string(pretty))
	}
}
