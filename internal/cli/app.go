// Package cli 实现 hannactl：基于 Transport Client 与 Message Store 的命令行客户端。
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/repository"
	"hanna-chat-go/internal/store"
	"hanna-chat-go/internal/transport"
	"hanna-chat-go/pkg/log"
)

// globalFlags 是所有子命令共享的参数。
type globalFlags struct {
	configPath string
	endpoint   string
	level      string
	driver     string
	logLevel   string
}

// app 持有一次命令执行期间的依赖。
type app struct {
	cfg    *config.Config
	blob   store.BlobStore
	store  *store.Store
	client *transport.Client
	closer io.Closer
	out    io.Writer

	mu      sync.Mutex
	printer func(model.Message)
}

func defaultConfigPath() string {
	return filepath.Join(repository.DefaultDataDir(), "config.yaml")
}

// newApp 加载配置、打开持久化驱动并创建客户端。
func newApp(ctx context.Context, flags *globalFlags, out io.Writer) (*app, error) {
	log.InitCLI(flags.logLevel)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.endpoint != "" {
		cfg.Client.Endpoint = flags.endpoint
	}
	if flags.level != "" {
		cfg.Client.Level = flags.level
	}
	if flags.driver != "" {
		cfg.Client.Persistence.Driver = flags.driver
	}

	blob, closer, err := repository.NewBlobStore(ctx, cfg.Client.Persistence)
	if err != nil {
		return nil, fmt.Errorf("open persistence: %w", err)
	}

	a := &app{cfg: cfg, blob: blob, closer: closer, out: out}
	a.store = store.New(blob, cfg.Client.Persistence.Key, store.WithObserver(a.onMessage))
	a.client = transport.New(cfg.Client.Endpoint, a.store,
		transport.WithLevel(cfg.Client.Level),
		transport.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout()}),
	)
	return a, nil
}

func (a *app) onMessage(msg model.Message) {
	a.mu.Lock()
	p := a.printer
	a.mu.Unlock()
	if p != nil {
		p(msg)
	}
}

// watch 在 fn 执行期间把消息变更交给 p。
func (a *app) watch(p func(model.Message), fn func() error) error {
	a.mu.Lock()
	a.printer = p
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.printer = nil
		a.mu.Unlock()
	}()
	return fn()
}

// storeCloseTimeout 限制退出时等待消息落盘的时间。
const storeCloseTimeout = 5 * time.Second

// Close 先把未保存的消息写完，再释放持久化连接。
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		log.Warnf("退出前保存会话失败: %v", err)
	}
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// streamPrinter 把占位消息的增量实时写到 out。
type streamPrinter struct {
	out  io.Writer
	id   string
	text string
}

func (p *streamPrinter) observe(msg model.Message) {
	if msg.Role != model.RoleAssistant {
		return
	}
	if p.id != msg.ID {
		p.id, p.text = msg.ID, ""
	}
	if !strings.HasPrefix(msg.Content, p.text) {
		// 内容被整体替换（例如错误提示），另起一行
		fmt.Fprintln(p.out)
		p.text = ""
	}
	fmt.Fprint(p.out, msg.Content[len(p.text):])
	p.text = msg.Content
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
