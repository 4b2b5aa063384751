// Package chatclient provides the streaming session controller used by localmind frontends.
//
// Ownership model:
//   - A Connection owns exactly one websocket link to the backend for one session.
//   - An Accumulator owns the ordered turns of the active session and folds streamed fragments into them.
//   - A Binding owns the current Connection/Accumulator pair and replaces both when the active session changes.
//   - A Controller is the read-mostly surface handed to presentation code.
//
// Recommended setup:
//   - Build a backend.Client (it implements HistorySource and StreamEndpoint).
//   - Create a Binding with NewBinding and wrap it with NewController.
//   - Subscribe to state changes and call Activate whenever the user selects a session.
package chatclient
