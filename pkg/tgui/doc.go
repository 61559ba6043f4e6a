// Package tgui provides small Telegram UI helpers: inline keyboards,
// "scope:action:payload" callback data and HTML escaping for ParseMode=HTML.
package tgui
