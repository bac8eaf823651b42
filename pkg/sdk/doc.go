// Package docingest embeds the docingest document pipeline in a Go program.
//
// A Client turns stored uploads into extracted text and a summary, tracked
// through a durable none → pending → processing → done|error lifecycle, and
// selects query-relevant passages from processed documents.
//
//	client, _ := docingest.New(ctx,
//	    docingest.WithSQLite("docingest.db"),
//	    docingest.WithFSObjects("/srv/uploads"),
//	    docingest.WithSummarizer(mySummarizer),
//	)
//	defer client.Close()
//
//	_, _ = client.RegisterOwner(ctx, 42)
//	docs := client.Documents(42)
//	doc, _ := docs.Submit(ctx, docingest.SubmitRequest{StorageKey: "q3.pdf", ContentType: "application/pdf"})
//	_, _ = docs.Process(ctx, doc.ID)
//	doc, _ = docs.Wait(ctx, doc.ID, time.Second)
//
// Segment and Select are also exported as pure functions for callers that
// build their own bounded, non-redundant contexts.
package docingest
