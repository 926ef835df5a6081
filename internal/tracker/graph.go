package tracker

import "sync"

// NodeKind classifies a message tracked by the graph.
type NodeKind int

const (
	// NodeMirror is a prompt's copy in the discussion group.
	NodeMirror NodeKind = iota
	// NodeTaskReply is the bot's task message posted under a mirror.
	NodeTaskReply
)

// GraphNode links a discussion-group message id back to the row it
// belongs to.
type GraphNode struct {
	Kind   NodeKind
	RowID  int64 // DailyPrompt or Task primary key, depending on Kind
	UserID int64 // owning user
}

// MessageGraph indexes the reply chain mirror <- task reply <- status reply
// by message id, making lookups O(1) instead of inferring the relationship
// from rendered message text. Message ids are scoped per chat, so the index
// is keyed by (chat id, message id). The graph is a cache over the store:
// it is rebuilt at startup and safe to miss.
type MessageGraph struct {
	mu    sync.RWMutex
	nodes map[int64]map[int]GraphNode
}

// NewMessageGraph creates an empty MessageGraph.
func NewMessageGraph() *MessageGraph {
	return &MessageGraph{nodes: make(map[int64]map[int]GraphNode)}
}

// Put records a node for a message in a chat.
func (g *MessageGraph) Put(chatID int64, messageID int, node GraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	chat, ok := g.nodes[chatID]
	if !ok {
		chat = make(map[int]GraphNode)
		g.nodes[chatID] = chat
	}
	chat[messageID] = node
}

// Get looks up the node recorded for a message, if any.
func (g *MessageGraph) Get(chatID int64, messageID int) (GraphNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[chatID][messageID]
	return node, ok
}

// Remove drops a single message from the index.
func (g *MessageGraph) Remove(chatID int64, messageID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes[chatID], messageID)
}

// RemoveUser drops every node owned by a user in a chat. Called when the
// next cycle's prompt supersedes the user's tracked messages.
func (g *MessageGraph) RemoveUser(chatID, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for messageID, node := range g.nodes[chatID] {
		if node.UserID == userID {
			delete(g.nodes[chatID], messageID)
		}
	}
}

// Len returns the total number of indexed messages.
func (g *MessageGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, chat := range g.nodes {
		n += len(chat)
	}
	return n
}
