/*
	Package webchannel implements the consuming side of the Qt WebChannel
	protocol. A host process publishes objects with methods, properties and
	signals; a Channel discovers them during the init handshake and exposes
	each one as an Object proxy.

	Transport is the only thing the Channel needs from the outside world: a
	way to send a frame and a way to receive the next one. Framing,
	encryption and connection setup belong to the transport (see the ws and
	natstransport packages).

	Channel owns the transport. It assigns correlation ids to requests that
	expect a reply, routes inbound messages by type, and holds the object
	registry. Serve reads from the transport and handles one message at a
	time; HandleMessage can be called directly by push-style transports.

	Object is a local stand-in for a remote object. Methods are called with
	Invoke (callback style) or Call (blocking). Properties are read from a
	cache that only inbound propertyUpdate messages write to; SetProperty
	asks the host to change the value and waits for the host to push it
	back. Signals are subscribed with Connect, which returns a Connection
	handle used to Disconnect.

	Callbacks and signal listeners run on the goroutine that handles the
	inbound message, so they must not block on another reply from the same
	Channel. Use Invoke from inside a callback, and Call everywhere else.
*/
package webchannel
