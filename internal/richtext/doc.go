// Package richtext turns operator-written Markdown into transport HTML.
//
// Broadcast bodies and order comments are authored in Markdown by operators.
// The chat transport accepts only a handful of HTML tags and rejects a whole
// message when it meets anything else, so ToHTML parses with goldmark and
// re-renders the AST by hand instead of using goldmark's HTML renderer:
//
//   - **bold**, *italic*, ~~strike~~, `code`, fenced blocks as <pre>
//   - links and bare URLs as <a href>, images as links to the image
//   - headings as bold lines, lists as "•" or "1." prefixed lines
//   - raw HTML is escaped and shown as typed
//
// Escape is exported for callers composing HTML around user-supplied values.
package richtext
