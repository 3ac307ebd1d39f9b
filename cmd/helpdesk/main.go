// Package main is the entry point for the Helpdesk-X service.
//
//	@title						Helpdesk-X API
//	@version					1.0
//	@description				对话式 IT 帮助台服务 - 事件跟踪与知识库同步
//	@termsOfService				https://github.com/kart-io/helpdesk-x
//
//	@contact.name				Helpdesk-X Team
//	@contact.url				https://github.com/kart-io/helpdesk-x
//
//	@license.name				Apache 2.0
//	@license.url				http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host						localhost:8083
//	@BasePath					/
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	helpdesk "github.com/kart-io/helpdesk-x/internal/helpdesk"
)

func main() {
	helpdesk.NewApp().Run()
}
