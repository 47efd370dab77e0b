package commons

// SEPARATOR splits multi-valued option strings such as "en-US<|||>fr-FR".
const SEPARATOR = "<|||>"
