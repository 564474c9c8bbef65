// Package i18n holds the customer and operator facing texts.
//
// # Locales
//
// Three locales are supported: ru (the default), uz and en. Match negotiates any
// platform language code down to one of them with a golang.org/x/text matcher, so
// "en-US" becomes "en" and anything unknown falls back to ru.
//
// # Catalogue
//
// Every text is a Key registered in an x/text message catalogue for all three
// locales. Texts are HTML fragments for the transport's HTML parse mode; callers
// escape user supplied values before passing them in.
//
//	cat := i18n.New()
//	cat.Text("en", i18n.MsgCancelled)
//	cat.Money("ru", order.Total)
package i18n
