// Package threadloom is a context and multi-agent orchestration engine for
// LLM-backed conversations.
//
// It mediates access to remote model backends on behalf of many independent
// threads, keeping each thread's context bounded and coherent while
// minimizing redundant API spend:
//
//   - Per-thread serialization: at most one in-flight message-processing
//     operation per thread, with no contention across threads.
//   - Context assembly and trimming: each completion call gets the system
//     prompt, the latest summary, and the most recent history that fits the
//     token budget, newest first.
//   - Background summarization: every N messages the history is compressed
//     by a dedicated model, detached from the request path; failures are
//     logged and never delay a reply.
//   - Conditional multi-agent pipeline: a planner and writer always run over
//     a collaboration query, and a reviewer runs only when a deterministic
//     complexity classifier says the query warrants it, consuming a
//     compressed view of the draft.
//
// Basic usage:
//
//	store := storage.NewPostgres(pool)
//	client := gateway.NewOpenRouter(gateway.OpenRouterConfig{APIKey: apiKey})
//	orch, err := threadloom.New(threadloom.Config{
//	    Store:  store,
//	    Client: client,
//	    Logger: logging.NewConsole(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Close()
//
//	thread, _ := orch.CreateThread(ctx, "user-1", "", "You are a helpful assistant.", "")
//	resp, err := orch.ProcessUserMessage(ctx, thread.ID, "Hello!", "")
package threadloom
