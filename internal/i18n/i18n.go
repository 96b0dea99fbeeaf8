// Package i18n maps (key, language) pairs to user-visible display
// text. The fallback chain is explicit: exact (key, lang), then
// (key, DefaultLang), then the empty string.
package i18n

// DefaultLang is the language used when the requested one has no
// entry for a key.
const DefaultLang = "en"

// Message keys used by the bot.
const (
	KeyWelcome        = "welcome"
	KeyHelp           = "help"
	KeyPromptUsage    = "prompt_usage"
	KeyPromptUpdated  = "prompt_updated"
	KeyPromptCurrent  = "prompt_current"
	KeyPromptNone     = "prompt_none"
	KeyPromptHowTo    = "prompt_howto"
	KeyResetDone      = "reset_done"
	KeyTruncated      = "truncated"
	KeyApology        = "apology"
	KeyButtonEdit     = "button_edit"
	KeyButtonReset    = "button_reset"
)

var messages = map[string]map[string]string{
	KeyWelcome: {
		"en": "Hello! I'm your LLM bot powered by DeepSeek.\n\n" +
			"Send me any text, and I'll forward it to the LLM.\n\n" +
			"To set a custom system prompt, click the button below or use:\n" +
			"/systemprompt <Your prompt here>",
		"zh": "你好！我是基于 DeepSeek 的 LLM 机器人。\n\n" +
			"发送任意文字，我会转发给大模型。\n\n" +
			"要设置自定义系统提示词，点击下方按钮或使用：\n" +
			"/systemprompt <你的提示词>",
	},
	KeyHelp: {
		"en": "I am an interface to LLM. Type your question, and I'll pass it on.\n\n" +
			"Commands:\n" +
			"/start — Greet and show inline buttons\n" +
			"/systemprompt <text> — Update your system prompt\n" +
			"/showprompt — Show your current system prompt\n" +
			"/resetcontext — Reset the conversation\n" +
			"/help — Show this help message",
		"zh": "我是大模型的对话入口，输入问题即可转发。\n\n" +
			"命令：\n" +
			"/start — 欢迎信息和快捷按钮\n" +
			"/systemprompt <文字> — 更新系统提示词\n" +
			"/showprompt — 查看当前系统提示词\n" +
			"/resetcontext — 重置对话\n" +
			"/help — 显示本帮助",
	},
	KeyPromptUsage: {
		"en": "Usage: /systemprompt <Your system prompt>\nPlease type some text after the command.",
		"zh": "用法：/systemprompt <你的系统提示词>\n请在命令后输入内容。",
	},
	KeyPromptUpdated: {
		"en": "System prompt updated!\nYour current system prompt:\n%s",
		"zh": "系统提示词已更新！\n当前系统提示词：\n%s",
	},
	KeyPromptCurrent: {
		"en": "Your current system prompt:\n%s",
		"zh": "当前系统提示词：\n%s",
	},
	KeyPromptNone: {
		"en": "No system prompt is set. Use /systemprompt <text> to set one.",
		"zh": "尚未设置系统提示词。使用 /systemprompt <文字> 进行设置。",
	},
	KeyPromptHowTo: {
		"en": "Please enter a new system prompt with:\n/systemprompt <Your new prompt>",
		"zh": "请用以下命令输入新的系统提示词：\n/systemprompt <新提示词>",
	},
	KeyResetDone: {
		"en": "Context reset. New conversation begins.",
		"zh": "上下文已重置，开始新的对话。",
	},
	KeyTruncated: {
		"en": "History truncated to the last %d messages.",
		"zh": "历史记录已截断为最近 %d 条。",
	},
	KeyApology: {
		"en": "I'm sorry, but I couldn't process your request at this time.",
	},
	KeyButtonEdit: {
		"en": "Edit System Prompt",
		"zh": "编辑系统提示词",
	},
	KeyButtonReset: {
		"en": "Reset Context 🔄",
		"zh": "重置上下文 🔄",
	},
}

// Lookup resolves key in lang, falling back to DefaultLang and then
// to the empty string.
func Lookup(key, lang string) string {
	byLang, ok := messages[key]
	if !ok {
		return ""
	}
	if text, ok := byLang[lang]; ok {
		return text
	}
	if text, ok := byLang[DefaultLang]; ok {
		return text
	}
	return ""
}

// Supported reports whether lang is one of the shipped languages.
func Supported(lang string) bool {
	switch lang {
	case "en", "zh":
		return true
	}
	return false
}
