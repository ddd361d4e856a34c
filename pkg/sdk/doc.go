// Package docpipe provides an embedded Go client for the docpipe staged
// query pipeline over a Redis document store.
//
// The client connects directly to the store and executes the full pipeline
// in-process, the same planning and execution path the docpipe server runs:
//
//	client, _ := docpipe.New(ctx, docpipe.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	res, _ := client.Query(ctx, docpipe.Request{
//	    Initiative: "S1",
//	    Categories: []int{105, 147},
//	    Ceiling:    9000,
//	})
//	for _, g := range res.Groups {
//	    fmt.Println(g.AnswerValue, g.Count)
//	}
package docpipe
