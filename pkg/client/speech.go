package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// ErrSpeechUnavailable 表示当前平台没有可用的语音合成或识别能力。
var ErrSpeechUnavailable = errors.New("speech feature unavailable")

// SpeechOptions 控制朗读的语言与语速。Rate 1.0 为正常语速。
type SpeechOptions struct {
	Lang string
	Rate float64
}

// DefaultSpeechOptions 使用巴西葡萄牙语，语速略慢以便听清。
var DefaultSpeechOptions = SpeechOptions{Lang: "pt-BR", Rate: 0.85}

// Synthesizer 朗读文本。开始新的朗读前会取消正在进行的朗读。
type Synthesizer interface {
	Speak(ctx context.Context, text string, opts SpeechOptions) error
	Cancel()
	Speaking() bool
}

// Recognizer 执行一次语音识别，返回识别出的文本。
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// NoopSynthesizer 在没有语音合成能力时使用。
type NoopSynthesizer struct{}

func (NoopSynthesizer) Speak(context.Context, string, SpeechOptions) error { return ErrSpeechUnavailable }
func (NoopSynthesizer) Cancel()                                            {}
func (NoopSynthesizer) Speaking() bool                                     { return false }

// NoopRecognizer 在没有语音识别能力时使用。
type NoopRecognizer struct{}

func (NoopRecognizer) Listen(context.Context) (string, error) { return "", ErrSpeechUnavailable }

// emoji 所在的 Unicode 区段
var emojiRanges = []*unicode.RangeTable{
	{R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1},
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1},
	}},
	{R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1},
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1},
		{Lo: 0xFE0F, Hi: 0xFE0F, Stride: 1},
	}},
}

// CleanSpeechText 去掉 emoji 与 Markdown 的 # 和 * 标记，并合并多余空白。
func CleanSpeechText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '#' || r == '*' || unicode.IsOneOf(emojiRanges, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// CommandSynthesizer 调用平台的 TTS 命令（espeak 或 say）朗读文本。
type CommandSynthesizer struct {
	name string
	args func(text string, opts SpeechOptions) []string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommandSynthesizer 在 PATH 中查找可用的 TTS 命令。
func NewCommandSynthesizer() (*CommandSynthesizer, error) {
	if path, err := exec.LookPath("espeak-ng"); err == nil {
		return &CommandSynthesizer{name: path, args: espeakArgs}, nil
	}
	if path, err := exec.LookPath("espeak"); err == nil {
		return &CommandSynthesizer{name: path, args: espeakArgs}, nil
	}
	if path, err := exec.LookPath("say"); err == nil {
		return &CommandSynthesizer{name: path, args: sayArgs}, nil
	}
	return nil, ErrSpeechUnavailable
}

// 正常语速约为每分钟 175 词
func wordsPerMinute(rate float64) string {
	if rate <= 0 {
		rate = 1
	}
	return strconv.Itoa(int(175 * rate))
}

func espeakArgs(text string, opts SpeechOptions) []string {
	args := []string{"-s", wordsPerMinute(opts.Rate)}
	if opts.Lang != "" {
		args = append(args, "-v", strings.ToLower(opts.Lang))
	}
	return append(args, "--", text)
}

func sayArgs(text string, opts SpeechOptions) []string {
	return []string{"-r", wordsPerMinute(opts.Rate), "--", text}
}

// Speak 阻塞直到朗读结束、被 Cancel 或 ctx 取消。
func (s *CommandSynthesizer) Speak(ctx context.Context, text string, opts SpeechOptions) error {
	text = CleanSpeechText(text)
	if text == "" {
		return nil
	}
	s.Cancel()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	cmd := exec.CommandContext(runCtx, s.name, s.args(text, opts)...)

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	err := cmd.Run()

	s.mu.Lock()
	if s.done == done {
		s.cancel, s.done = nil, nil
	}
	s.mu.Unlock()
	cancel()
	close(done)

	if runCtx.Err() != nil {
		// 被新的朗读或 Cancel 打断不算错误
		return nil
	}
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// Cancel 停止正在进行的朗读，并等待进程退出。
func (s *CommandSynthesizer) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *CommandSynthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// CommandRecognizer 运行一个单次识别的 STT 命令，并把其标准输出作为识别结果。
type CommandRecognizer struct {
	Command string
	Args    []string
}

func (r CommandRecognizer) Listen(ctx context.Context) (string, error) {
	if r.Command == "" {
		return "", ErrSpeechUnavailable
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrSpeechUnavailable
		}
		return "", fmt.Errorf("listen: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
