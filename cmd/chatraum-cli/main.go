// chatraum-cli is a terminal chat client. It connects to a chatraum server,
// joins the room and turns stdin lines into chat messages.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codefionn/chatraum/internal/client"
	"github.com/codefionn/chatraum/internal/logger"
)

var (
	usernameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "chat server websocket endpoint")
		username = flag.String("username", "", "display name to join with")
		logLevel = flag.String("log-level", "none", "log level: debug, info, warn, error, none")
	)
	flag.Parse()

	if strings.TrimSpace(*username) == "" {
		return fmt.Errorf("a username is required (-username)")
	}

	logger.SetGlobal(logger.New(logger.ParseLevel(*logLevel), os.Stderr, ""))

	c := client.New(client.DefaultConfig(*url))
	c.SetEventCallback(printEvent)
	c.SetStateChangedCallback(func(s client.State) {
		switch s {
		case client.StateConnected:
			fmt.Println(statusStyle.Render("* connected"))
			if err := c.JoinRoom(*username); err != nil {
				fmt.Println(errorStyle.Render("* join failed: " + err.Error()))
			}
		case client.StateReconnecting:
			fmt.Println(statusStyle.Render(fmt.Sprintf("* connection lost, retrying (%d/5)", c.ReconnectAttempts())))
		case client.StateGaveUp:
			fmt.Println(errorStyle.Render("* could not reach the server, giving up"))
		case client.StateDisconnected:
			fmt.Println(statusStyle.Render("* disconnected"))
		}
	})

	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := c.SendChat(line); err != nil {
			fmt.Println(errorStyle.Render("* not connected, message dropped"))
		}
	}
	return scanner.Err()
}

func printEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventHistory:
		for _, m := range ev.History {
			printChatLine(m.Username, m.Text)
		}
	case client.EventChat:
		printChatLine(ev.Username, ev.Text)
	case client.EventSystem, client.EventPresenceJoined, client.EventPresenceLeft:
		fmt.Println(systemStyle.Render("* " + ev.Text))
	case client.EventUserCount:
		fmt.Println(systemStyle.Render(fmt.Sprintf("* %d user(s) online", ev.Count)))
	case client.EventError:
		fmt.Println(errorStyle.Render("! " + ev.Text))
	}
}

func printChatLine(username, text string) {
	fmt.Printf("%s %s\n", usernameStyle.Render("<"+username+">"), text)
}
