// Package runner は外部ダウンローダの1コマンドを監視付きで実行する。
//
// 標準出力と標準エラーを並行に読み、2つの独立したポリシーを適用する:
// 停止キーワードの連続出現による途中打ち切りと、任意の部分文字列に
// 反応するトリガーコールバック。どの経路で終了してもプロセスグループを
// 残さないことを保証する。
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultStopThreshold は停止キーワードの連続出現回数のしきい値。
// ダウンローダは取得済みコンテンツに到達するとマーカー行を繰り返し出力する。
// 単発の出現はノイズとして無視し、連続した場合のみ新規コンテンツなしと判断する。
const DefaultStopThreshold = 12

const (
	termGracePeriod = 1 * time.Second
	preSignalWait   = 400 * time.Millisecond
)

// Trigger は出力行への反応を定義する。部分文字列が行に含まれると
// コールバックが呼ばれる。停止ポリシーとは独立に全行で評価される。
type Trigger struct {
	Keyword  string
	Callback func()
}

// Options はコマンド実行時の監視ポリシー。
type Options struct {
	// StopKeywords のいずれかを含む行が StopThreshold 回連続すると
	// プロセスグループへSIGTERMを送り、猶予後にSIGKILLする。
	StopKeywords  []string
	StopThreshold int
	Triggers      []Trigger
}

// Runner は1つずつコマンドを実行する監視付きランナー。
type Runner struct {
	mu          sync.Mutex
	currentPgid int // 0なら実行中のコマンドなし
	logger      *slog.Logger
}

// New はRunnerを生成する。
func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

type streamLine struct {
	text   string
	stderr bool
}

// Run はコマンドを実行し、終了まで出力を監視する。
// 停止キーワードによる打ち切りと外部からのInterruptは正常終了として扱う。
func (r *Runner) Run(ctx context.Context, name string, args []string, opts Options) error {
	threshold := opts.StopThreshold
	if threshold <= 0 {
		threshold = DefaultStopThreshold
	}

	r.logger.Info("コマンドを実行します",
		slog.String("command", name+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, name, args...)
	// 子プロセスが孫を持っても一括で停止できるよう、独立した
	// プロセスグループで起動する
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("標準出力のパイプ作成に失敗しました: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("標準エラーのパイプ作成に失敗しました: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("コマンドの起動に失敗しました: %w", err)
	}
	pgid := cmd.Process.Pid

	r.mu.Lock()
	r.currentPgid = pgid
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.currentPgid = 0
		r.mu.Unlock()
		// どの経路でもプロセスグループを残さない
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}()

	// どちらかのストリームが詰まっても他方の読み取りを止めないよう、
	// ストリームごとのゴルーチンが共有チャネルへ行を流す
	lines := make(chan streamLine, 64)
	var wg sync.WaitGroup
	wg.Add(2)
	go r.scanStream(stdout, false, lines, &wg)
	go r.scanStream(stderr, true, lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	stopCnt := 0
	stopped := false
	for line := range lines {
		r.logger.Info(line.text, slog.Bool("stderr", line.stderr))

		// トリガーは停止判断とは独立に、打ち切り後の残り行でも評価する
		for _, trig := range opts.Triggers {
			if strings.Contains(line.text, trig.Keyword) {
				r.logger.Info("トリガーが発火しました", slog.String("trigger", trig.Keyword))
				trig.Callback()
			}
		}

		if stopped {
			continue
		}
		if containsAny(line.text, opts.StopKeywords) {
			stopCnt++
			if stopCnt >= threshold {
				r.logger.Info("停止キーワードがしきい値に達しました", slog.Int("count", stopCnt))
				r.terminateGroup(pgid)
				stopped = true
			}
		} else {
			stopCnt = 0
		}
	}

	err = cmd.Wait()
	if err != nil && !stopped {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// シグナルでの終了はInterruptによるものとみなす
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == -1 {
			r.logger.Info("コマンドは外部から中断されました")
			return nil
		}
		return fmt.Errorf("コマンドが異常終了しました: %w", err)
	}

	r.logger.Info("コマンドが終了しました", slog.Int("exit_code", cmd.ProcessState.ExitCode()))
	return nil
}

// Interrupt は実行中のコマンドを停止する。実行中でなければ何もしない。
func (r *Runner) Interrupt() {
	r.mu.Lock()
	pgid := r.currentPgid
	r.mu.Unlock()
	if pgid == 0 {
		return
	}
	r.logger.Info("コマンドを中断します", slog.Int("pgid", pgid))
	r.terminateGroup(pgid)
}

// terminateGroup はプロセスグループへSIGTERMを送り、猶予後も生きていれば
// SIGKILLで強制終了する。
func (r *Runner) terminateGroup(pgid int) {
	time.Sleep(preSignalWait)
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.Sleep(termGracePeriod)
	if syscall.Kill(-pgid, 0) == nil {
		r.logger.Info("強制終了します", slog.Int("pgid", pgid))
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

func (r *Runner) scanStream(pipe io.Reader, isStderr bool, out chan<- streamLine, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		out <- streamLine{text: text, stderr: isStderr}
	}
}

func containsAny(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}
