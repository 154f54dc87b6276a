package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Backend process
		"Starting %s backend %s: %s":              "%s バックエンド %s を起動中: %s",
		"Backend %s exited: %s":                   "バックエンド %s が終了しました: %s",
		"Backend %s terminated":                   "バックエンド %s を強制終了しました",
		"Backend %s produced %d bytes":            "バックエンド %s が %d バイトを出力しました",
		"Backend diagnostic: %s":                  "バックエンド診断: %s",
		"Failed to start backend: %s":             "バックエンドの起動に失敗しました: %s",
		"Backend error: %s":                       "バックエンドエラー: %s",

		// State machines
		"Configured %s %dx%d":                     "%s %dx%d で設定しました",
		"Reconfigured while backend %s is running, keeping it": "バックエンド %s の実行中に再設定されました。プロセスは維持されます",
		"Flushing %d frames":                      "%d フレームをフラッシュ中",
		"Flushing %d chunks":                      "%d チャンクをフラッシュ中",
		"Delivered %s chunk: %d bytes at %d us":   "%s チャンクを出力: %d バイト (%d us)",
		"Delivered %d frames":                     "%d フレームを出力しました",
		"Error channel full, dropping: %s":        "エラーチャネルが満杯のため破棄: %s",
		"Flush failed: %s":                        "フラッシュに失敗しました: %s",
		"Closed":                                  "クローズしました",

		// Server
		"Listening on %s":                         "%s で待ち受け中",
		"Shutting down server":                    "サーバーをシャットダウン中",
		"%s %s -> %d (%s)":                        "%s %s -> %d (%s)",
		"Request failed: %s":                      "リクエストに失敗しました: %s",

		// CLI
		"Encoded %d frames to %s (%d bytes)":      "%d フレームを %s にエンコードしました (%d バイト)",
		"Decoded %d frames":                       "%d フレームをデコードしました",
		"Interrupted, shutting down...":           "中断されました。シャットダウン中...",
	})
}
