package types

// Version is the canonical project version.
// The CLI, the wire contract and the archive record format share it.
const Version = "0.3.0"

// ContractVersion is the data part wire contract version.
// Lockstep with Version.
const ContractVersion = Version
