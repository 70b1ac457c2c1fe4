// chatcli 是一个终端聊天前端：登录后与 EduBot 对话，支持评价、收藏与朗读。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"study-with-speech/pkg/client"
	"study-with-speech/pkg/log"
)

var levels = []string{"iniciante", "intermediario", "avancado", "universitario"}

type app struct {
	api     *client.Client
	store   client.SessionStore
	session *client.Session
	view    *client.ChatView
	synth   client.Synthesizer
	in      *bufio.Scanner
	out     io.Writer
}

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv("CHAT_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	apiURL := flag.String("api", defaultURL, "backend base URL")
	sessionPath := flag.String("session", "", "session file path (default: user config dir)")
	noSpeech := flag.Bool("no-speech", false, "disable text-to-speech")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log.Init(*logLevel, "console", "")
	defer log.Sync()

	path := *sessionPath
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			log.Fatalf("无法确定会话文件路径: %v", err)
		}
		path = p
	}
	store := client.FileStore{Path: path}
	session, err := store.Load()
	if err != nil {
		log.Warnf("会话文件损坏，重新登录: %v", err)
		session = &client.Session{}
	}
	if session.Level == "" {
		session.Level = levels[0]
	}

	var synth client.Synthesizer = client.NoopSynthesizer{}
	if !*noSpeech {
		if s, err := client.NewCommandSynthesizer(); err == nil {
			synth = s
		} else {
			log.Warnf("未找到语音合成命令，朗读已关闭")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		api:     client.New(*apiURL, client.WithToken(session.Token)),
		store:   store,
		session: session,
		synth:   synth,
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
	}
	if err := a.run(ctx); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		log.Fatalf("chatcli: %v", err)
	}
	synth.Cancel()
}

func (a *app) run(ctx context.Context) error {
	for {
		if !a.session.Authenticated() {
			if err := a.authenticate(ctx); err != nil {
				return err
			}
		}
		a.view = client.NewChatView(a.api, a.session, a.synth)
		a.view.OnSpeechError = func(err error) { log.Warnf("朗读失败: %v", err) }
		if err := a.view.Load(ctx); err != nil {
			if client.StatusOf(err) == 401 && a.tryRefresh(ctx) {
				continue
			}
			if client.StatusOf(err) == 401 {
				a.signOut()
				continue
			}
			return err
		}
		a.printHistory()
		a.printf("输入消息开始对话，/help 查看命令。\n")

		loggedOut, err := a.chat(ctx)
		if err != nil {
			return err
		}
		if !loggedOut {
			return nil
		}
	}
}

func (a *app) tryRefresh(ctx context.Context) bool {
	if a.session.RefreshToken == "" {
		return false
	}
	access, refresh, err := a.api.Refresh(ctx, a.session.RefreshToken)
	if err != nil {
		return false
	}
	a.session.Token, a.session.RefreshToken = access, refresh
	a.save()
	return true
}

func (a *app) authenticate(ctx context.Context) error {
	for {
		choice, err := a.prompt("[1] 登录  [2] 注册: ")
		if err != nil {
			return err
		}
		email, err := a.prompt("邮箱: ")
		if err != nil {
			return err
		}
		password, err := a.prompt("密码: ")
		if err != nil {
			return err
		}

		if choice == "2" {
			name, err := a.prompt("姓名: ")
			if err != nil {
				return err
			}
			if _, err := a.api.Register(ctx, email, password, name); err != nil {
				a.printf("注册失败: %s\n", describe(err))
				continue
			}
		}

		res, err := a.api.Login(ctx, email, password)
		if err != nil {
			a.printf("登录失败: %s\n", describe(err))
			continue
		}
		a.session.Token = res.Token
		a.session.RefreshToken = res.RefreshToken
		user := res.User
		a.session.User = &user
		a.save()
		a.printf("欢迎，%s！\n", user.Name)
		return nil
	}
}

// chat 读取输入直到 /quit、/logout 或输入结束。返回值表示是否已登出。
func (a *app) chat(ctx context.Context) (bool, error) {
	for {
		line, err := a.prompt("> ")
		if err != nil {
			return false, err
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			a.send(ctx, line)
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "/quit", "/exit":
			return false, nil
		case "/logout":
			if err := a.api.Logout(ctx, a.session.RefreshToken); err != nil {
				log.Warnf("logout: %v", err)
			}
			a.signOut()
			a.printf("已登出。\n")
			return true, nil
		case "/like", "/dislike":
			id, ok := a.idArg(args)
			if !ok {
				continue
			}
			rating := client.RatingPositive
			if cmd == "/dislike" {
				rating = client.RatingNegative
			}
			if err := a.view.Rate(ctx, id, rating); err != nil {
				a.printf("评价失败: %s\n", describe(err))
				continue
			}
			a.printEntry(a.entry(id))
		case "/save":
			id, ok := a.idArg(args)
			if !ok {
				continue
			}
			saved, err := a.view.ToggleSave(ctx, id)
			if err != nil {
				a.printf("收藏失败: %s\n", describe(err))
				continue
			}
			if saved {
				a.printf("已收藏 #%d\n", id)
			} else {
				a.printf("已取消收藏 #%d\n", id)
			}
		case "/saved":
			items, err := a.api.ListSaved(ctx)
			if err != nil {
				a.printf("获取收藏失败: %s\n", describe(err))
				continue
			}
			for _, it := range items {
				a.printf("  #%d %s\n", it.MessageID, it.Content)
			}
		case "/level":
			if len(args) != 1 || !validLevel(args[0]) {
				a.printf("当前级别 %s，可选: %s\n", a.session.Level, strings.Join(levels, ", "))
				continue
			}
			a.session.Level = args[0]
			a.save()
		case "/speech":
			a.session.SpeechEnabled = !a.session.SpeechEnabled
			if !a.session.SpeechEnabled {
				a.synth.Cancel()
			}
			a.save()
			a.printf("朗读: %v\n", a.session.SpeechEnabled)
		case "/stop":
			a.synth.Cancel()
		case "/suggest":
			text := strings.TrimSpace(strings.TrimPrefix(line, cmd))
			if _, err := a.api.CreateSuggestion(ctx, text); err != nil {
				a.printf("提交失败: %s\n", describe(err))
				continue
			}
			a.printf("感谢你的建议！\n")
		case "/help":
			a.printf("/like ID  /dislike ID  /save ID  /saved  /level L  /speech  /stop  /suggest 文本  /logout  /quit\n")
		default:
			a.printf("未知命令 %s\n", cmd)
		}
	}
}

func (a *app) send(ctx context.Context, text string) {
	before := len(a.view.Entries())
	err := a.view.Send(ctx, text)
	if client.StatusOf(err) == 401 {
		a.printf("登录已过期，请输入 /logout 后重新登录。\n")
	}
	entries := a.view.Entries()
	// 只打印助手回复，用户消息已在输入行上
	for _, e := range entries[min(before, len(entries)):] {
		if e.Role == client.RoleAssistant {
			a.printEntry(e)
		}
	}
}

func (a *app) idArg(args []string) (uint, bool) {
	if len(args) != 1 {
		a.printf("需要消息 ID\n")
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id == 0 {
		a.printf("无效的消息 ID %q\n", args[0])
		return 0, false
	}
	return uint(id), true
}

func (a *app) entry(id uint) client.Entry {
	for _, e := range a.view.Entries() {
		if e.ID == id {
			return e
		}
	}
	return client.Entry{}
}

func (a *app) printHistory() {
	for _, e := range a.view.Entries() {
		a.printEntry(e)
	}
}

func (a *app) printEntry(e client.Entry) {
	who := "你"
	if e.Role == client.RoleAssistant {
		who = "EduBot"
	}
	var tags []string
	if e.Role == client.RoleAssistant && !e.Failed {
		tags = append(tags, fmt.Sprintf("👍%d 👎%d", e.Likes, e.Dislikes))
	}
	if e.Saved {
		tags = append(tags, "★")
	}
	id := ""
	if e.ID != 0 {
		id = fmt.Sprintf("#%d ", e.ID)
	}
	a.printf("%s%s: %s", id, who, e.Content)
	if len(tags) > 0 {
		a.printf("  [%s]", strings.Join(tags, " "))
	}
	a.printf("\n")
}

func (a *app) signOut() {
	a.session.SignOut()
	a.api.SetToken("")
	a.save()
}

func (a *app) save() {
	if err := a.store.Save(a.session); err != nil {
		log.Warnf("保存会话失败: %v", err)
	}
}

func (a *app) prompt(label string) (string, error) {
	a.printf("%s", label)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func validLevel(level string) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
