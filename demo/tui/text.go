package tui

// UI Text Constants
const (
	TextStartInstruction = "Press 's' to scan this document against the corpus"

	TextFooterIdle    = "s submit | r refresh | q quit"
	TextFooterRunning = "c cancel | r refresh | q quit"
)
