package irc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"astro/internal/config"
	"astro/pkg/logger"
)

// Bridge 把活动任务派发给挂在 IRC 频道里的外部代理。
// 每次 Ask 建立一条新连接：注册随机昵称、加入频道、分段发送提示，
// 然后收集其他昵称的回复，首行之后静默 IdleTimeout 即视为回复结束。
type Bridge struct {
	Host        string
	Port        int
	Channel     string
	Timeout     time.Duration // 等待回复的总上限
	IdleTimeout time.Duration // 首行回复后的静默判定
	MaxPayload  int           // 单条 PRIVMSG 的最大字节数
	log         *logger.Logger
}

// NewBridge 按配置创建一个 Bridge。
func NewBridge(cfg config.IRCConfig) *Bridge {
	return &Bridge{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Channel:     cfg.Channel,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		IdleTimeout: time.Duration(cfg.IdleTimeout) * time.Second,
		MaxPayload:  cfg.MaxPayload,
		log:         logger.New("irc"),
	}
}

// Ask 发送一条消息并等待频道里其他成员的回复。
func (b *Bridge) Ask(ctx context.Context, message string) (string, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", b.Host, b.Port))
	if err != nil {
		return "", fmt.Errorf("IRC connection failed: %w", err)
	}
	defer conn.Close()

	nick := fmt.Sprintf("astro-%s", uuid.New().String()[:6])
	reader := bufio.NewReader(conn)

	send := func(line string) error {
		_, err := conn.Write([]byte(line + "\r\n"))
		return err
	}

	// readLine 在 deadline 内读取一行，顺手应答 PING。
	readLine := func(deadline time.Time) (string, error) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return "", err
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "PING") {
			token := line
			if idx := strings.Index(line, ":"); idx >= 0 {
				token = line[idx+1:]
			}
			if err := send("PONG :" + token); err != nil {
				return "", err
			}
		}
		return line, nil
	}

	waitFor := func(match func(string) bool, timeout time.Duration) error {
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			line, err := readLine(deadline)
			if err != nil {
				return err
			}
			if match(line) {
				return nil
			}
		}
		return fmt.Errorf("timed out")
	}

	// 注册并加入频道。
	if err := send("NICK " + nick); err != nil {
		return "", err
	}
	if err := send(fmt.Sprintf("USER %s 0 * :Astro", nick)); err != nil {
		return "", err
	}
	if err := waitFor(func(l string) bool {
		return strings.Contains(l, " 001 ") || strings.Contains(l, " 376 ")
	}, 15*time.Second); err != nil {
		return "", fmt.Errorf("IRC registration timed out")
	}

	if err := send("JOIN " + b.Channel); err != nil {
		return "", err
	}
	if err := waitFor(func(l string) bool {
		return strings.Contains(l, " 366 ")
	}, 15*time.Second); err != nil {
		return "", fmt.Errorf("IRC JOIN %s timed out", b.Channel)
	}

	for _, cmd := range SplitMessage(message, b.Channel, b.MaxPayload) {
		if err := send(cmd); err != nil {
			return "", err
		}
	}
	b.log.Info(fmt.Sprintf("Sent %d chars to %s as %s", len(message), b.Channel, nick))
	defer send("QUIT :done")

	// 收集其他昵称的回复。
	var chunks []string
	overallDeadline := time.Now().Add(b.Timeout)
	gotFirst := false

	for time.Now().Before(overallDeadline) {
		deadline := overallDeadline
		if gotFirst {
			deadline = time.Now().Add(b.IdleTimeout)
		}
		line, err := readLine(deadline)
		if err != nil {
			if gotFirst {
				break
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return "", err
		}

		text, sender, ok := parsePrivmsg(line)
		if !ok || strings.EqualFold(sender, nick) {
			continue
		}
		chunks = append(chunks, text)
		gotFirst = true
	}

	if len(chunks) == 0 {
		return "", fmt.Errorf("no response received in %s within %s, is a bot connected to the IRC channel?",
			b.Channel, b.Timeout)
	}
	return strings.Join(chunks, "\n"), nil
}

// SplitMessage 把长文本拆成若干 PRIVMSG 命令，每条不超过 maxPayload 字节。
func SplitMessage(text, channel string, maxPayload int) []string {
	if maxPayload <= 0 {
		maxPayload = 400
	}
	var cmds []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			cmds = append(cmds, fmt.Sprintf("PRIVMSG %s : ", channel))
			continue
		}
		for len(line) > maxPayload {
			cmds = append(cmds, fmt.Sprintf("PRIVMSG %s :%s", channel, line[:maxPayload]))
			line = line[maxPayload:]
		}
		cmds = append(cmds, fmt.Sprintf("PRIVMSG %s :%s", channel, line))
	}
	return cmds
}

// parsePrivmsg 从一行 IRC 消息中解出发送者昵称和正文。
func parsePrivmsg(line string) (text, sender string, ok bool) {
	idx := strings.Index(line, " PRIVMSG ")
	if idx < 0 {
		return "", "", false
	}
	sender = strings.TrimPrefix(strings.SplitN(line, "!", 2)[0], ":")
	after := line[idx+len(" PRIVMSG "):]
	if sep := strings.Index(after, " :"); sep >= 0 {
		return after[sep+2:], sender, true
	}
	parts := strings.SplitN(after, " ", 2)
	if len(parts) == 2 {
		return parts[1], sender, true
	}
	return "", sender, true
}
