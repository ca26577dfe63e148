package detect

// Reason codes shared with other stages.
const (
	CodePolicyOverride   = "POLICY_OVERRIDE"
	CodeExfilRequest     = "EXFIL_REQUEST"
	CodeToolCoercion     = "TOOL_COERCION"
	CodeRuleLimitReached = "RULE_LIMIT_REACHED"

	// ObfuscatedSuffix marks findings that only appeared in the shadow text.
	ObfuscatedSuffix = "_OBFUSCATED"
)

// builtinRules is the English-centric regex and structural rule set. Order
// is significant: findings are reported in declaration order.
var builtinRules = []Rule{
	{
		Code: CodePolicyOverride, Tier: TierPermissive, Weight: 0.55, Kind: KindRegex,
		Pattern: `(?i)\b(ignore|disregard|forget|override)\b.{0,40}\b(previous|prior|above|earlier|preceding|all)\b.{0,40}\b(instructions?|prompts?|rules?|directives?|guidance)\b`,
	},
	{
		Code: "ROLE_IMPERSONATION", Tier: TierPermissive, Weight: 0.5, Kind: KindRegex,
		Pattern: `(?i)\b(you are now|act as|pretend (to be|you are)|roleplay as|you must now behave as)\b`,
	},
	{
		Code: "STEALTH_INSTRUCTION", Tier: TierPermissive, Weight: 0.4, Kind: KindRegex,
		Pattern: `(?i)\b((do not|don'?t|never)\s+(tell|inform|mention|reveal|alert|notify|disclose)\b.{0,40}\b(the\s+)?(user|human|operator|developer|anyone|this|it)|without\s+(telling|informing|alerting|notifying)\b.{0,40}\b(the\s+)?(user|human|operator|anyone)|keep\s+(this|it)\s+(a\s+)?secret)\b`,
	},
	{
		Code: CodeExfilRequest, Tier: TierPermissive, Weight: 0.6, Kind: KindRegex,
		Pattern: `(?i)\b(send|post|upload|exfiltrate|transmit|forward|email|curl|wget|reveal|share|print|paste|copy)\b.{0,60}\b(api[_ -]?keys?|tokens?|secrets?|credentials?|passwords?|\.env\b|env vars?|environment variables?|ssh[_ -]?keys?|private[_ -]?keys?|system prompt)`,
	},
	{
		Code: "PROCESS_SABOTAGE", Tier: TierPermissive, Weight: 0.7, Kind: KindRegex,
		Pattern: `(?i)\b(rm\s+-rf|delete|remove|wipe|destroy|drop)\b.{0,40}\b(database|backups?|production|entire|all\s+(the\s+)?files|repositor(y|ies)|git\s+history)\b`,
	},
	{
		Code: "PROMPT_BOUNDARY", Tier: TierBalanced, Weight: 0.4, Kind: KindRegex,
		Pattern: `(<\|im_start\|>|<\|im_end\|>|\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>|<\|system\|>|<\|user\|>|<\|assistant\|>)`,
	},
	{
		Code: "ROLE_HEADER", Tier: TierBalanced, Weight: 0.3, Kind: KindRegex,
		Pattern: `(?im)^\s*(system|assistant|developer)\s*:\s*\S`,
	},
	{
		Code: "RESPONSE_CONSTRAINT", Tier: TierBalanced, Weight: 0.3, Kind: KindRegex,
		Pattern: `(?i)\b(respond only with|reply only with|answer only with|your (response|reply) must|do not mention|never reveal that)\b`,
	},
	{
		Code: "CODE_TAMPERING_COERCION", Tier: TierBalanced, Weight: 0.7, Kind: KindRegex,
		Pattern: `(?i)\b(insert|add|inject|place|hide|plant|introduce)\b.{0,50}\b(backdoors?|vulnerabilit(y|ies)|malicious\s+code|exploits?|trojans?|keyloggers?|obfuscated\s+payloads?)\b`,
	},
	{
		Code: "TOOL_CALL_SERIALIZED", Tier: TierBalanced, Weight: 0.4, Kind: KindRegex,
		Pattern: `("tool_call"|"function_call"|"tool_use"|<tool_call>|<function_call>|"name"\s*:\s*"[a-z0-9_]+"\s*,\s*"arguments"\s*:)`,
	},
	{
		Code: "POLICY_BYPASS", Tier: TierBalanced, Weight: 0.5, Kind: KindRegex,
		Pattern: `(?i)\b(jailbreak|dan mode|developer mode|no restrictions apply|without (any )?(restrictions|limitations|filters)|bypass (the |your )?(safety|filters?|guardrails?|restrictions))\b`,
	},
	{
		Code: CodeToolCoercion, Tier: TierBalanced, Weight: 0.4, Kind: KindRegex,
		Pattern: `(?i)\b(you (must|should|need to)|please)\s+(call|invoke|use|run|execute)\b.{0,40}\b(tools?|functions?|mcp|commands?)\b`,
	},
	{
		Code: "SENSITIVE_FILE_ACCESS", Tier: TierBalanced, Weight: 0.6, Kind: KindRegex,
		Pattern: `(?i)\b(read|open|cat|print|show|display|fetch|access|dump)\b.{0,60}(\.env\b|id_rsa|id_ed25519|\.aws/credentials|\.ssh/|/etc/passwd|/etc/shadow|\.netrc|\.git-credentials|\.pem\b)`,
	},
	{
		Code: "COMMAND_COERCION", Tier: TierBalanced, Weight: 0.5, Kind: KindRegex,
		Pattern: `(?i)\b(run|execute|type|paste)\s+(the\s+)?(following|this)\s+(command|script|code|snippet)\b`,
	},
	{
		Code: "SHELL_EXECUTION", Tier: TierBalanced, Weight: 0.5, Kind: KindStructural,
		Pattern: `(?m)(\b(curl|wget)\s+[^\n|]{0,120}\|\s*(ba|z)?sh\b|;\s*rm\s+-rf\s+/|^\s*\$\s+(curl|wget|bash|sh|rm|chmod)\b)`,
	},
	{
		Code: "INSTRUCTION_HEADER", Tier: TierStrict, Weight: 0.3, Kind: KindRegex,
		Pattern: `(?im)^\s*#{1,6}\s*(instructions?|system\s+prompt|new\s+rules|important)\b`,
	},
	{
		Code: "PERSONA_SHIFT", Tier: TierStrict, Weight: 0.4, Kind: KindRegex,
		Pattern: `(?i)\b(new persona|your new name is|from now on,? you (are|will)|switch to \S{1,20} mode|enter \S{1,20} mode)\b`,
	},
	{
		Code: "OBFUSCATION_MARKER", Tier: TierStrict, Weight: 0.3, Kind: KindRegex,
		Pattern: `(?i)\b(base64[- ]?decode|decode (this|the following)|rot13|reversed text|read (this|it) backwards|hex[- ]?decode)\b`,
	},
	{
		Code: "MULTI_STEP_INSTRUCTION", Tier: TierStrict, Weight: 0.3, Kind: KindStructural,
		Pattern: `(?im)^\s*(step\s+)?\d{1,2}[.):]\s+(first\s+|then\s+|now\s+)?(run|execute|delete|send|open|install|download|copy|modify|create|disable|fetch)\b`,
	},
}
