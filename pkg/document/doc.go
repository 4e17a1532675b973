/*
Package document is the coordinator boundary between a markdown notebook and
the evaluation and highlighting core.

Extract finds fenced code blocks with goldmark. A Document keeps the current
fragments plus per-fragment state (last output, recorded error) keyed by
fragment identity, so that state follows a block when text around it is edited.
Observers subscribe to Changes instead of toolkit callbacks. Watcher reloads
a Document from disk when the file changes.
*/
package document
