// Command captain runs the scripted AI captain as a websocket client. It
// claims the captain seat of one crew and posts briefing guidance to the
// navigator and driller.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/aicaptain"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		crew = flag.String("crew", "crew_a", "crew id")
		seed = flag.Int64("seed", time.Now().UnixNano(), "guidance rng seed")
		name = flag.String("name", "ai-captain", "participant name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[captain] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CrewID:          *crew,
		Role:            protocol.RoleCaptain,
		ParticipantName: *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	captain := aicaptain.New(*crew, *seed)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME crew=%s participant=%s captain_type=%s", w.CrewID, w.ParticipantID, w.Session.CaptainType)

		case protocol.TypeState:
			var state protocol.StateMsg
			if err := json.Unmarshal(msg, &state); err != nil {
				continue
			}
			if state.Stage == protocol.StageComplete || state.Stage == protocol.StageCancelled {
				logger.Printf("session over: stage=%s minerals=%d", state.Stage, state.Minerals)
				return
			}
			for _, chat := range captain.Coordinate(state) {
				if err := conn.WriteJSON(chat); err != nil {
					return
				}
				logger.Printf("guidance round=%d to=%s: %s", chat.Round, chat.ToRole, chat.Text)
			}

		case protocol.TypeRoundResult:
			var rr protocol.RoundResultMsg
			if err := json.Unmarshal(msg, &rr); err != nil {
				continue
			}
			logger.Printf("round=%d location=%s minerals=%d complete=%v", rr.Round, rr.Location, rr.Minerals, rr.Complete)

		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			logger.Printf("server error: %s %s", em.Code, em.Message)
		}
	}
}
