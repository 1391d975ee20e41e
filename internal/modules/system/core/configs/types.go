package configs

const configKey = "tldr_settings"

// secretMask replaces credentials in settings responses. Patching a secret
// with the mask keeps the stored value.
const secretMask = "********"
