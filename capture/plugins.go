package capture

import "sync"

// Plugin mutates the document tree before the capture pipeline runs over
// it. Plugins have no return contract; arbitrary side effects are allowed.
type Plugin func(*Document)

var (
	pluginMu sync.Mutex
	plugins  []Plugin
)

// RegisterPlugin adds a hook run once per document right after the document
// is constructed.
func RegisterPlugin(p Plugin) {
	if p == nil {
		return
	}
	pluginMu.Lock()
	plugins = append(plugins, p)
	pluginMu.Unlock()
}

func runPlugins(doc *Document) {
	pluginMu.Lock()
	hooks := make([]Plugin, len(plugins))
	copy(hooks, plugins)
	pluginMu.Unlock()
	for _, p := range hooks {
		p(doc)
	}
}
