package app

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なし", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"scan", []string{"scan"}, CommandScan},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"未知のコマンド", []string{"bogus"}, CommandServe},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseCommand(tc.args); got != tc.want {
				t.Errorf("コマンドの解析結果が一致しません: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	cfg, err := Init(nil)
	if err != nil {
		t.Fatalf("初期化に失敗しました: %v", err)
	}
	if cfg.ServerPort == "" {
		t.Error("ポートのデフォルト値が設定されていません")
	}
	if cfg.ItemsPerPage <= 0 {
		t.Error("ページサイズのデフォルト値が設定されていません")
	}
}
