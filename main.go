package main

import (
	"github.com/shouni/go-st-localizer/cmd"
)

// main はアプリケーションの唯一のエントリーポイントなのだ！
// コマンドライン解析と実行はすべて cmd パッケージに委ねるのだよ。
func main() {
	cmd.Execute()
}
