// Terminal client for the tictactoe-live server. It joins (or creates)
// a session over WebSocket, renders every state broadcast, and sends
// moves read from stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-live/internal/entity"
	"github.com/rocketscienceinc/tictactoe-live/internal/session"
	transport "github.com/rocketscienceinc/tictactoe-live/transport/websocket"
)

var (
	serverAddr = flag.String("server", "localhost:8080", "Server address (host:port)")
	sessionID  = flag.String("session", "", "Session identifier to join or create")
	playerName = flag.String("name", "", "Player name (also your reconnection key)")
)

var (
	markX  = color.New(color.FgRed, color.Bold)
	markO  = color.New(color.FgBlue, color.Bold)
	notice = color.New(color.FgYellow)
	happy  = color.New(color.FgGreen, color.Bold)
)

func main() {
	flag.Parse()

	if *sessionID == "" || *playerName == "" {
		fmt.Fprintln(os.Stderr, "both -session and -name are required")
		flag.Usage()
		os.Exit(1)
	}

	wsURL := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", wsURL.String(), err)
		os.Exit(1)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	if err = send(conn, "game:join", transport.JoinPayload{ID: *sessionID, Name: *playerName}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to join session: %v\n", err)
		os.Exit(1)
	}

	myMark := make(chan string, 1)
	done := make(chan struct{})
	go receive(conn, myMark, done)

	var mark string
	select {
	case mark = <-myMark:
	case <-done:
		os.Exit(1)
	}

	fmt.Printf("joined session %q as ", *sessionID)
	colorFor(mark).Printf("%s\n", mark)
	fmt.Println("enter a cell number 0-8 to move, 'reset' for a rematch, 'quit' to leave")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit":
			return
		case line == "reset":
			if err = send(conn, "game:reset", struct{}{}); err != nil {
				fmt.Fprintf(os.Stderr, "failed to send reset: %v\n", err)
				return
			}
		default:
			cell, convErr := strconv.Atoi(line)
			if convErr != nil {
				notice.Println("type a cell number 0-8, 'reset' or 'quit'")
				continue
			}

			if err = send(conn, "game:turn", transport.TurnPayload{Cell: &cell}); err != nil {
				fmt.Fprintf(os.Stderr, "failed to send move: %v\n", err)
				return
			}
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func send(conn *websocket.Conn, action string, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err = conn.WriteJSON(transport.Message{Action: action, Payload: payloadBytes}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// receive prints every server message until the connection dies.
func receive(conn *websocket.Conn, myMark chan<- string, done chan<- struct{}) {
	defer close(done)

	joined := false

	for {
		var message transport.Message
		if err := conn.ReadJSON(&message); err != nil {
			notice.Println("connection closed")
			return
		}

		var payload transport.ResponsePayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			continue
		}

		if payload.Error != "" {
			notice.Printf("rejected: %s\n", payload.Error)
			if !joined {
				return
			}
			continue
		}

		if !joined && payload.Player != nil {
			joined = true
			myMark <- payload.Player.Mark
			continue
		}

		if payload.Game != nil {
			render(payload.Game)
		}
	}
}

func render(snap *session.Snapshot) {
	fmt.Println()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := snap.Board[row*3+col]
			switch cell {
			case entity.EmptyCell:
				fmt.Printf(" %d ", row*3+col)
			default:
				colorFor(cell).Printf(" %s ", cell)
			}

			if col < 2 {
				fmt.Print("|")
			}
		}
		fmt.Println()
		if row < 2 {
			fmt.Println("---+---+---")
		}
	}

	fmt.Printf("score X:%d O:%d\n", snap.Scores[entity.PlayerX], snap.Scores[entity.PlayerO])

	for _, player := range snap.Players {
		if !player.Connected {
			notice.Printf("waiting for %s (%s) to reconnect...\n", player.Name, player.Mark)
		}
	}

	switch snap.Status {
	case entity.StatusWaiting:
		notice.Println("waiting for an opponent to join")
	case entity.StatusFinished:
		if snap.Winner == entity.PlayerTie {
			happy.Println("it's a draw! type 'reset' for a rematch")
		} else {
			happy.Printf("%s wins! type 'reset' for a rematch\n", snap.Winner)
		}
	default:
		fmt.Print("turn: ")
		colorFor(snap.Turn).Printf("%s\n", snap.Turn)
	}
}

func colorFor(mark string) *color.Color {
	if mark == entity.PlayerX {
		return markX
	}
	return markO
}
