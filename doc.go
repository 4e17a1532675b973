/*
Package scribe is the core of an interactive markdown notebook: it evaluates
fenced code blocks in a long-lived REPL subprocess and highlights them with an
incremental, batched tokenizer.

# Concept

A notebook is a markdown document. Its fenced code blocks are fragments; a
fragment is identified by its language and exact text, never by its
position, so editing prose around a block keeps its cached tokens and its
recorded error.

Evaluation goes through one interpreter session per notebook. Every
submission is framed by print statements carrying a random marker, so the
output belonging to each request can be cut out of the interpreter's stdout
stream without knowing anything about the language. Results are delivered
asynchronously, exactly once each, in submission order.

Highlighting consults an in-memory LRU cache, then an optional persistent
store (Redis), and sends only the misses to the tokenizer: one call per
language with all missing fragments joined by a delimiter.

# Architecture

	pkg/domain        fragments, tokens, output records, sentinel errors
	pkg/repl          session driver, output framer, evaluation queue
	pkg/highlight     cache and batch highlighter
	pkg/document      markdown extraction, fragment state, file watching
	pkg/ports         Tokenizer and TokenStore contracts
	pkg/adapters/...  chroma, external process, redis, memory, http, mcp

# Usage

	cfg, err := config.Load("scribe.yaml")
	if err != nil {
		log.Fatal(err)
	}
	nb, err := scribe.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer nb.Close()

	nb.Load(source)
	if _, err := nb.EvaluateAll(); err != nil {
		log.Fatal(err)
	}
	for res := range nb.Results() {
		fmt.Println(res.Index, res.Stdout, res.Stderr)
	}
*/
package scribe
