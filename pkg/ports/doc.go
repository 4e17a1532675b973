/*
Package ports defines the driven ports (interfaces) of the notebook core.

These interfaces decouple highlighting from concrete lexers and storage, so the
same batch tokenizer can run against an in-process lexer library, an external
command, or a fake in tests, and persist results in memory or in Redis.

# Key Interfaces

  - Tokenizer: turns source text of one language into byte-offset tokens.
  - TokenStore: optional second-level cache of token lists keyed by fragment identity.
*/
package ports
