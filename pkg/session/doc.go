/*
Package session turns a notebook's single asynchronous result stream into
request/response calls for multi-client front ends (HTTP, MCP).

A Dispatcher is the only reader of Notebook.Results. Submissions made through
it register a waiter under the same lock the reader pops with, so the n-th
waiter receives the n-th result. Every result is also passed to the
registered observers.
*/
package session
