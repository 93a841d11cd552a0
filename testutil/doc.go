/*
Package testutil provides fixtures for tests of the Spectrum write pipeline.

Configurations are built with options on top of a small default:

	cfg := testutil.NewTestConfig(
	    testutil.WithScheme(protocol.SchemeMultiKey),
	    testutil.WithParties(3),
	)

NewTestProtocol builds the protocol for a config together with fresh
channel keys, and ExpectedTable gives the table a reveal should produce
for a set of accepted writes:

	p, keys := testutil.NewTestProtocol(t, testutil.WithChannels(4))
	tokens, _ := protocol.ShareMessage(p, []byte("hi"), 2, keys)
	...
	require.Equal(t, testutil.ExpectedTable(p, map[int][]byte{2: []byte("hi")}), table)

The protocol package's own tests cannot import testutil since testutil
depends on it.
*/
package testutil
