package interfaces

// ShareSource produces share mnemonics from some input medium.
// Implementations exist for files, readers, interactive terminals and the
// clipboard; none of them are part of the core engine, which only ever sees
// the already-tokenized word sequences.
type ShareSource interface {
	Shares() ([]Mnemonic, error)
}
