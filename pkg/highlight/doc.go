/*
Package highlight colours notebook fragments incrementally.

A Highlighter looks every fragment up by identity (language plus exact text) in
a bounded in-memory Cache and, optionally, a persistent ports.TokenStore. The
fragments that miss are grouped per language, concatenated with a delimiter and
tokenized with a single call per language; the returned tokens are attributed
back to their fragments by binary search on the recorded offsets.

Positions are byte offsets into the fragment text.
*/
package highlight
