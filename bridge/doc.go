// Package bridge forwards bus events to consumers outside the process.
//
// A [Forwarder] subscribes to a set of event names, wraps every event in a
// [Frame], encodes it with a [Codec] (JSON or MessagePack) and hands the
// bytes to a [Sink]. [RedisSink] publishes frames on Redis pub/sub
// channels named after the event:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	fwd := bridge.NewForwarder(bus, bridge.NewRedisSink(client),
//	    bridge.WithCodec(bridge.GetCodec(bridge.CodecNameMsgpack)),
//	    bridge.WithNames(event.LocationUpdate, event.RunStopped),
//	)
//	fwd.Start()
//	defer fwd.Close()
//
// Delivery is best effort: a sink error is logged and counted, and the
// bus keeps delivering to its other subscribers.
package bridge
