// Package consumer runs an external SAXS producer and exposes its stream.
//
// A Consumer owns one producer process for its whole lifetime. It offers two ways to
// consume the stream, both backed by the same sequential reader:
//
//   - Samples returns a lazy, forward-only sequence of (Sample, FlowMetadata) pairs,
//     and Messages returns every decoded message including control and unknown kinds;
//   - Run pushes every pair to a Handler, routing handler failures to OnError without
//     aborting the stream.
//
// The stream can be consumed only once. Closing the consumer, or cancelling the context
// passed to an iteration, stops the producer gracefully.
//
// Example:
//
//	cfg, err := consumer.NewConnectionConfig("./dbreader",
//		consumer.WithDatabaseURL(dsn),
//		consumer.WithHandshake(true),
//	)
//	if err != nil {
//		return err
//	}
//
//	c := consumer.NewConsumer(cfg)
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Close()
//
//	for sample, meta := range c.Samples(ctx) {
//		process(sample, meta)
//	}
//	return c.Err()
package consumer
