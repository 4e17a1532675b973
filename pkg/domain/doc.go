/*
Package domain contains the core data model shared by the scribe notebook core.

It defines the values that flow between the interpreter session driver, the
highlighting pipeline and the document coordinator. This package is kept pure
and free of I/O so that adapters (tokenizers, stores, transports) can depend on
it without pulling in each other.

# Key Entities

  - Fragment: A unit of source text (a fenced code block) whose identity is its text.
  - Token: A highlighted span of a fragment, in fragment-local byte offsets.
  - OutputRecord: The decoded result of one evaluation, correlated with caller metadata.
  - SessionState: The lifecycle of the interpreter subprocess.

All positions in this package are byte offsets into UTF-8 text. Conversions to
other units live in the textpos subpackage and are only used at boundaries.
*/
package domain
