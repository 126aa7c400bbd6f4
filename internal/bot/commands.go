package bot

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// сплит с поддержкой кавычек: !echo "два слова"
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

var presences = map[string]bool{"online": true, "idle": true, "dnd": true, "offline": true}

// HandleCommand разбирает одну команду с префиксом; ответы уходят в say.
// Текст без префикса игнорируется.
func (bot *Bot) HandleCommand(text string, say func(string)) error {
	prefix := bot.cfg.Prefix
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return nil
	}
	fields := splitArgs(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "help":
		say(strings.Join([]string{
			prefix + "help",
			prefix + "ping",
			prefix + "echo <text>",
			prefix + "status online|idle|dnd|offline",
			prefix + "uptime",
		}, "\n"))
		return nil

	case "ping":
		say("pong")
		return nil

	case "echo":
		if len(fields) < 2 {
			return fmt.Errorf("usage: %secho <text>", prefix)
		}
		say(strings.Join(fields[1:], " "))
		return nil

	case "status":
		if len(fields) < 2 {
			return fmt.Errorf("usage: %sstatus online|idle|dnd|offline", prefix)
		}
		status := strings.ToLower(fields[1])
		if !presences[status] {
			return fmt.Errorf("bad status %q", fields[1])
		}
		if err := bot.client.SetPresence(status); err != nil {
			return err
		}
		say("status: " + status)
		return nil

	case "uptime":
		say("uptime: " + bot.Uptime().Truncate(time.Second).String())
		return nil

	default:
		return fmt.Errorf("unknown command. try %shelp", prefix)
	}
}

func splitArgs(s string) []string {
	var out []string
	for _, m := range reArg.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
