// Command chat drives text-only turns against the gateway: each stdin line
// becomes a text_input control message and the reply text is printed.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"cairn-audio/protocol"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws/audio", "websocket endpoint")
	withTTS := flag.Bool("tts", false, "request synthesized audio as well")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	if _, _, err := conn.ReadMessage(); err != nil {
		log.Fatalf("read connected: %v", err)
	}
	fmt.Println("connected; type a message and press enter (ctrl-d to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		msg, _ := json.Marshal(protocol.ControlMessage{
			Type:    protocol.MsgTypeControl,
			Event:   protocol.EventTextInput,
			Payload: protocol.TextInputPayload{Text: line, SkipTTS: !*withTTS},
		})
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Fatalf("send text_input: %v", err)
		}

		if err := printReply(conn, *withTTS); err != nil {
			log.Fatalf("read reply: %v", err)
		}
	}
}

func printReply(conn *websocket.Conn, expectAudio bool) error {
	conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType == websocket.BinaryMessage {
			fmt.Printf("[%d bytes of audio]\n", len(raw))
			return nil
		}

		var msg protocol.InboundControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			fmt.Printf("<- %s\n", raw)
			continue
		}

		switch msg.Event {
		case protocol.EventTranscriptionReady:
			var payload protocol.ReadyPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return err
			}
			fmt.Printf("assistant: %s  (llm %.0fms, total %.0fms)\n",
				payload.ReplyText, payload.Timings.LLMMs, payload.Timings.TotalMs)
			if !expectAudio {
				return nil
			}
		case protocol.EventError:
			fmt.Printf("error: %s\n", msg.Payload)
			return nil
		default:
			fmt.Printf("<- %s\n", raw)
		}
	}
}
