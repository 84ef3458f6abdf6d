package runner

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRunCompletesNormally(t *testing.T) {
	r := New(testLogger())

	err := r.Run(context.Background(), "/bin/sh", []string{"-c", "echo line1; echo line2"}, Options{})
	if err != nil {
		t.Fatalf("正常終了のコマンドがエラーを返しました: %v", err)
	}
}

func TestRunStopsOnConsecutiveKeywords(t *testing.T) {
	r := New(testLogger())

	// マーカーを15回連続で出してから長時間スリープする。
	// しきい値12で打ち切られるため、スリープまで到達しないはず
	script := `i=0; while [ $i -lt 15 ]; do echo "# skipped"; i=$((i+1)); done; sleep 60`

	start := time.Now()
	err := r.Run(context.Background(), "/bin/sh", []string{"-c", script}, Options{
		StopKeywords: []string{"#"},
	})
	if err != nil {
		t.Fatalf("打ち切りがエラー扱いになっています: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Second {
		t.Errorf("打ち切りまでに時間がかかりすぎています: %v", elapsed)
	}
}

func TestRunDoesNotStopOnIntermittentKeywords(t *testing.T) {
	r := New(testLogger())

	// マーカーと通常行が交互に出る場合、連続カウンタがリセットされ
	// 打ち切られずに完走する
	script := `i=0; while [ $i -lt 20 ]; do echo "# skipped"; echo "downloading"; i=$((i+1)); done; echo done`

	err := r.Run(context.Background(), "/bin/sh", []string{"-c", script}, Options{
		StopKeywords:  []string{"#"},
		StopThreshold: 12,
	})
	if err != nil {
		t.Fatalf("完走すべきコマンドがエラーを返しました: %v", err)
	}
}

func TestRunTriggerOnStderr(t *testing.T) {
	r := New(testLogger())

	var activated atomic.Int32
	err := r.Run(context.Background(), "/bin/sh",
		[]string{"-c", `echo "NotFoundError: user gone" 1>&2; echo ok`}, Options{
			Triggers: []Trigger{{
				Keyword:  "NotFoundError",
				Callback: func() { activated.Add(1) },
			}},
		})
	if err != nil {
		t.Fatalf("コマンドがエラーを返しました: %v", err)
	}
	if activated.Load() != 1 {
		t.Errorf("標準エラー上のトリガーが発火していません: %d", activated.Load())
	}
}

func TestRunReturnsErrorOnNonZeroExit(t *testing.T) {
	r := New(testLogger())

	err := r.Run(context.Background(), "/bin/sh", []string{"-c", "exit 3"}, Options{})
	if err == nil {
		t.Fatal("非ゼロ終了がエラーになっていません")
	}
}

func TestInterruptWithoutRunningCommand(t *testing.T) {
	r := New(testLogger())
	// 実行中のコマンドがなければ何も起きない
	r.Interrupt()
}

func TestInterruptStopsRunningCommand(t *testing.T) {
	r := New(testLogger())

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), "/bin/sh", []string{"-c", "sleep 60"}, Options{})
	}()

	time.Sleep(500 * time.Millisecond)
	r.Interrupt()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("中断がエラー扱いになっています: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("中断後もコマンドが終了しません")
	}
}
