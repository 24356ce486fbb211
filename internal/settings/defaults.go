package settings

type setting struct {
	key   string
	value any
}

// defaults are written by LoadDefaults in this order.
var defaults = []setting{
	{"window.width", 1200},
	{"window.height", 800},
	{"window.x", -1}, // -1 centres the window
	{"window.y", -1},
	{"window.maximized", false},
	{"window.edge_trigger_width", 5},
	{"window.peek_width", 300},
	{"window.hide_delay", 2000},
	{"window.always_on_top", false},

	{"ui.theme", "auto"},
	{"ui.language", "zh_CN"},
	{"ui.font_size", 12},
	{"ui.animation_enabled", true},

	{"features.auto_save", true},
	{"features.auto_save_interval", 30},
	{"features.spell_check", false},
	{"features.word_wrap", true},
	{"features.show_line_numbers", false},

	{"search.max_results", 100},
	{"search.highlight_enabled", true},
	{"search.fuzzy_search", true},
	{"search.case_sensitive", false},

	{"backup.enabled", true},
	{"backup.interval_days", 7},
	{"backup.max_backups", 10},

	{"performance.cache_enabled", true},
	{"performance.cache_size_mb", 50},
	{"performance.lazy_load", true},
}

// Defaults returns a copy of the default settings.
func Defaults() map[string]any {
	out := make(map[string]any, len(defaults))
	for _, d := range defaults {
		out[d.key] = d.value
	}
	return out
}
