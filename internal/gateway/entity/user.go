package entity

// SystemAccountEmail identifies the designated system account that owns
// incident tickets created by the Firebreak agent.
const SystemAccountEmail = "system@firedesk.internal"

// DemoWorkspaceSlug is the fixed workspace analyses are attributed to.
const DemoWorkspaceSlug = "demo"
