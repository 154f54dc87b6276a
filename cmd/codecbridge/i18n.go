// Package main provides localization for the codecbridge CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Backend": "バックエンド",
		"Logging": "ログ",
		"Codec":   "コーデック",
		"Output":  "出力先",

		// Root command
		"WebCodecs-style video encoding and decoding through ffmpeg": "ffmpegによるWebCodecs互換の動画エンコードとデコード",

		// Global flags
		"YAML configuration file": "YAML設定ファイル",
		"Path to ffmpeg executable (falls back to FFMPEG_PATH, then PATH)": "ffmpeg実行ファイルのパス（未指定時はFFMPEG_PATH、次にPATHを参照）",
		"Log level (debug, info, warn, error)":                  "ログレベル（debug, info, warn, error）",
		"Write logs to a rotating file instead of the console": "コンソールの代わりにローテーションするファイルへログを出力",
		"Suppress all log output":                              "全てのログ出力を抑制",

		// Serve command
		"Run the HTTP encode/decode service": "HTTPエンコード/デコードサービスを起動",
		"Listen address (default: :3001)":    "待ち受けアドレス（デフォルト: :3001）",
		"Maximum concurrent backend jobs":    "同時実行するバックエンドジョブの上限",
		"Starting server on %s":              "%s でサーバーを起動中",

		// Encode command
		"Encode a raw I420 file into a video container":       "生のI420ファイルを動画コンテナにエンコード",
		"Raw I420 input file (required)":                      "生のI420入力ファイル（必須）",
		"Output video file path (required)":                   "出力動画ファイルパス（必須）",
		"Output video file path":                              "出力動画ファイルパス",
		"Frame width in pixels":                               "フレームの幅（ピクセル）",
		"Frame height in pixels":                              "フレームの高さ（ピクセル）",
		"Input frame rate":                                    "入力フレームレート",
		"Codec identifier (vp8, vp9, vp09, avc1, h264, av01)": "コーデック識別子（vp8, vp9, vp09, avc1, h264, av01）",
		"Target bitrate in bits per second":                   "目標ビットレート（bps）",
		"Frames between keyframes":                            "キーフレーム間隔（フレーム数）",
		"Encoding %d frames (%dx%d %s)...":                    "%d フレームをエンコード中 (%dx%d %s)...",

		// Decode command
		"Decode a video file into raw I420 frames":                 "動画ファイルを生のI420フレームにデコード",
		"Compressed video input file (required)":                   "圧縮動画の入力ファイル（必須）",
		"Raw I420 output file":                                     "生のI420出力ファイル",
		"Output frame width in pixels":                             "出力フレームの幅（ピクセル）",
		"Output frame height in pixels":                            "出力フレームの高さ（ピクセル）",
		"Write PNG thumbnails of decoded frames to this directory": "デコードしたフレームのPNGサムネイルを出力するディレクトリ",
		"Write a thumbnail every N frames":                         "Nフレームごとにサムネイルを出力",
		"Maximum thumbnail width in pixels":                        "サムネイルの最大幅（ピクセル）",
		"Decoded %d frames":                                        "%d フレームをデコードしました",
		"Saved %d snapshots to %s":                                 "%d 枚のスナップショットを %s に保存しました",

		// Demo command
		"Encode 10 synthetic frames at 640x480":  "640x480の合成フレーム10枚をエンコード",
		"Encoding demo video...":                 "デモ動画をエンコード中...",
		"Encoded %d frames into %d chunks in %s": "%d フレームを %d チャンクにエンコードしました（%s）",

		// Stress command
		"Encode synthetic 1080p video and report throughput": "1080pの合成動画をエンコードしてスループットを報告",
		"Seconds of 30 fps video to encode":                  "エンコードする30fps動画の秒数",
		"Save the encoded video to this path":                "エンコードした動画をこのパスに保存",
		"Stress test: %d frames at %dx%d (%s)...":            "負荷テスト: %d フレーム %dx%d (%s)...",
		"Frames: %d":                                         "フレーム数: %d",
		"Chunks: %d":                                         "チャンク数: %d",
		"Output: %.2f MB":                                    "出力: %.2f MB",
		"Time: %s":                                           "所要時間: %s",
		"FPS: %.1f":                                          "FPS: %.1f",
		"Throughput: %.2f MB/s":                              "スループット: %.2f MB/s",
		"Memory delta: %.2f MB":                              "メモリ増加量: %.2f MB",
		"Encoding took longer than %s":                       "エンコードに %s 以上かかりました",
		"Memory grew by more than %d MB":                     "メモリが %d MB 以上増加しました",

		// Inspect command
		"Show container format, codec and sample counts of a video file": "動画ファイルのコンテナ形式、コーデック、サンプル数を表示",
		"A video file argument is required":                              "動画ファイルの引数が必要です",
		"Format: %s":                                                     "形式: %s",
		"Codec: %s":                                                      "コーデック: %s",
		"Size: %dx%d":                                                    "サイズ: %dx%d",
		"Samples: %d (sync: %d)":                                         "サンプル数: %d（同期: %d）",
		"Fragmented: %t":                                                 "フラグメント化: %t",

		// Summary output
		"Output execution summary to file (Markdown format)": "実行サマリーをファイルに出力（Markdown形式）",
		"Summary saved to %s":                                "サマリーを %s に保存しました",
		"Failed to write summary: %s":                        "サマリーの書き込みに失敗しました: %s",

		// Codecs command
		"List supported codec identifiers": "対応コーデック識別子を一覧表示",

		// Version command
		"Show version information": "バージョン情報を表示",
		"codecbridge version %s":   "codecbridge バージョン %s",

		// Runtime messages
		"Output saved to %s (%d bytes)":   "出力を %s に保存しました（%d バイト）",
		"Output saved to %s":              "出力を %s に保存しました",
		"Container: %s, codec: %s, %dx%d": "コンテナ: %s, コーデック: %s, %dx%d",
		"Backend reported errors: %s":     "バックエンドがエラーを報告しました: %s",
		"Interrupted, shutting down...":   "中断されました。シャットダウン中...",
		"Error: %s":                       "エラー: %s",
	})
}
