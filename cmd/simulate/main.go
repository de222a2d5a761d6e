// Command simulate exercises the audio websocket endpoint: it streams
// synthetic (or file-sourced) PCM frames, signals speech_end, and prints
// the reply. Useful for poking at a running gateway without a device.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"cairn-audio/protocol"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws/audio", "websocket endpoint")
	frames := flag.Int("frames", 50, "number of 20ms frames to send")
	gapAt := flag.Int("gap-at", -1, "inject a sequence gap before this frame index")
	mismatchAt := flag.Int("mismatch-at", -1, "send a wrong-sample-rate frame at this index")
	pcmPath := flag.String("file", "", "raw PCM16 mono 16kHz file to stream instead of a sine tone")
	freq := flag.Float64("freq", 440, "sine tone frequency in Hz")
	skipTTSReply := flag.Bool("discard-audio", false, "don't wait for the binary reply")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	// connected message
	_, raw, err := conn.ReadMessage()
	if err != nil {
		log.Fatalf("read connected: %v", err)
	}
	fmt.Printf("<- %s\n", raw)

	pcm := loadPCM(*pcmPath, *frames, *freq)

	const frameBytes = protocol.SampleRate * 2 / 50 // 20ms of PCM16 mono
	seq := uint16(0)
	for i := 0; i*frameBytes < len(pcm); i++ {
		if *gapAt == i {
			seq += 3 // simulate lost frames
		}
		end := (i + 1) * frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		payload := pcm[i*frameBytes : end]

		header := protocol.FrameHeader{
			Sequence:      seq,
			SampleRate:    protocol.SampleRate,
			Channels:      protocol.Channels,
			BitsPerSample: protocol.BitsPerSample,
		}

		var frame []byte
		if *mismatchAt == i {
			// Bypass EncodeFrame's field checks to provoke a server-side
			// parameter mismatch
			frame, _ = protocol.EncodeFrame(header, payload)
			frame[4] = 0x40 // 8000 Hz, little-endian
			frame[5] = 0x1f
		} else {
			frame, err = protocol.EncodeFrame(header, payload)
			if err != nil {
				log.Fatalf("encode frame %d: %v", i, err)
			}
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Fatalf("send frame %d: %v", i, err)
		}
		seq++
		time.Sleep(20 * time.Millisecond)
	}

	end, _ := json.Marshal(protocol.ControlMessage{Type: protocol.MsgTypeControl, Event: protocol.EventSpeechEnd})
	if err := conn.WriteMessage(websocket.TextMessage, end); err != nil {
		log.Fatalf("send speech_end: %v", err)
	}
	fmt.Println("-> speech_end")

	conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read reply: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			fmt.Printf("<- %d bytes of reply audio\n", len(raw))
			return
		}
		fmt.Printf("<- %s\n", raw)

		var msg protocol.InboundControl
		if err := json.Unmarshal(raw, &msg); err == nil {
			if msg.Event == protocol.EventError {
				return
			}
			if msg.Event == protocol.EventTranscriptionReady && *skipTTSReply {
				return
			}
		}
	}
}

// loadPCM reads a raw PCM file or renders a sine tone covering the
// requested number of 20ms frames.
func loadPCM(path string, frames int, freq float64) []byte {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		return data
	}

	samples := frames * protocol.SampleRate / 50
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/protocol.SampleRate))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return pcm
}
