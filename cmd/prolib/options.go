package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OptionType defines the type of value an option expects
type OptionType int

const (
	OptionTypeBool OptionType = iota
	OptionTypeString
	OptionTypeInt
	OptionTypeStringList // Repeatable, every occurrence adds a value
)

// OptionDef defines a command-line option
type OptionDef struct {
	Long        string     // Long option name (without --)
	Short       string     // Short option name (without -)
	Type        OptionType // Type of value expected
	Description string     // Help description
	Default     string     // Default value
}

// ParsedOptions holds the parsed command-line options
type ParsedOptions struct {
	values        map[string]string
	lists         map[string][]string
	args          []string
	defs          map[string]*OptionDef
	order         []string          // Long names in definition order, for usage
	shortMap      map[string]string // Maps short options to long options
	explicitlySet map[string]bool   // Tracks which options were explicitly set
}

// NewParsedOptions creates a new options parser
func NewParsedOptions() *ParsedOptions {
	return &ParsedOptions{
		values:        make(map[string]string),
		lists:         make(map[string][]string),
		args:          []string{},
		defs:          make(map[string]*OptionDef),
		shortMap:      make(map[string]string),
		explicitlySet: make(map[string]bool),
	}
}

// DefineOption defines a command-line option
func (p *ParsedOptions) DefineOption(long, short string, optType OptionType, defaultValue, description string) {
	def := &OptionDef{
		Long:        long,
		Short:       short,
		Type:        optType,
		Description: description,
		Default:     defaultValue,
	}
	if _, exists := p.defs[long]; !exists {
		p.order = append(p.order, long)
	}
	p.defs[long] = def
	if short != "" {
		p.shortMap[short] = long
	}

	// Set default value
	if defaultValue != "" && optType != OptionTypeStringList {
		p.values[long] = defaultValue
	}
}

// Parse parses command-line arguments. A lone "--" ends option parsing.
func (p *ParsedOptions) Parse(args []string) error {
	consumed := make([]bool, len(args)) // Track which arguments are consumed
	end := len(args)

	// First pass: identify options and mark consumed arguments
	for i := 0; i < end; i++ {
		if consumed[i] {
			continue
		}

		arg := args[i]

		if arg == "--" {
			consumed[i] = true
			end = i
			break
		}

		if strings.HasPrefix(arg, "--") {
			// Long option
			consumed[i] = true
			if err := p.parseLongOption(arg, args[:end], &i, consumed); err != nil {
				return err
			}
		} else if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			// Short option(s)
			consumed[i] = true
			if err := p.parseShortOptions(arg, args[:end], &i, consumed); err != nil {
				return err
			}
		}
	}

	// Second pass: collect non-consumed arguments
	for i := 0; i < len(args); i++ {
		if !consumed[i] {
			p.args = append(p.args, args[i])
		}
	}

	return nil
}

// parseLongOption parses a long option (--option, --option=value or --option value)
func (p *ParsedOptions) parseLongOption(arg string, args []string, i *int, consumed []bool) error {
	optName := strings.TrimPrefix(arg, "--")
	var optValue string
	hasValue := false

	// Check for --option=value format
	if equalPos := strings.Index(optName, "="); equalPos != -1 {
		optValue = optName[equalPos+1:]
		optName = optName[:equalPos]
		hasValue = true
	}

	def, exists := p.defs[optName]
	if !exists {
		return fmt.Errorf("unknown option: --%s", optName)
	}

	switch def.Type {
	case OptionTypeBool:
		if hasValue {
			// --option=value format with boolean
			switch optValue {
			case "true", "1":
				p.values[optName] = "true"
			case "false", "0":
				p.values[optName] = "false"
			default:
				return fmt.Errorf("invalid boolean value for --%s: %s", optName, optValue)
			}
		} else {
			// --option format (sets to true)
			p.values[optName] = "true"
		}
		p.explicitlySet[optName] = true

	case OptionTypeInt:
		if !hasValue {
			// --verbose without a level counts as one more level
			p.values[optName] = strconv.Itoa(p.countValue(optName) + 1)
			p.explicitlySet[optName] = true
			return nil
		}
		if _, err := strconv.Atoi(optValue); err != nil {
			return fmt.Errorf("invalid integer value for --%s: %s", optName, optValue)
		}
		p.values[optName] = optValue
		p.explicitlySet[optName] = true

	case OptionTypeString, OptionTypeStringList:
		if !hasValue {
			// --option value format, the value is the next available argument
			if optValue = p.findNextAvailableArg(args, *i, consumed); optValue == "" {
				return fmt.Errorf("option --%s requires a value", optName)
			}
		}
		p.setString(def, optValue)
	}

	return nil
}

// parseShortOptions parses short option(s) (-o or -abc)
func (p *ParsedOptions) parseShortOptions(arg string, args []string, i *int, consumed []bool) error {
	shortOpts := strings.TrimPrefix(arg, "-")

	// First, count occurrences of each option for repetition handling
	var seen []string
	optCounts := make(map[string]int)
	for _, r := range shortOpts {
		short := string(r)
		if _, exists := p.shortMap[short]; !exists {
			return fmt.Errorf("unknown option: -%s", short)
		}
		if optCounts[short] == 0 {
			seen = append(seen, short)
		}
		optCounts[short]++
	}

	// Process each option in the order given so values are consumed left to right
	for _, short := range seen {
		count := optCounts[short]
		longOpt := p.shortMap[short]
		def := p.defs[longOpt]

		switch def.Type {
		case OptionTypeBool:
			// For boolean options, just set to true
			p.values[longOpt] = "true"
			p.explicitlySet[longOpt] = true

		case OptionTypeInt:
			if count == 1 {
				// Single occurrence, an integer right after it is the level
				if nextArg := p.findNextIntArg(args, *i, consumed); nextArg != "" {
					p.values[longOpt] = nextArg
					p.explicitlySet[longOpt] = true
					continue
				}
			}
			// Use repetition count as value (e.g., -vvv = verbose level 3, -v -v = 2)
			p.values[longOpt] = strconv.Itoa(p.countValue(longOpt) + count)
			p.explicitlySet[longOpt] = true

		case OptionTypeString, OptionTypeStringList:
			// String options must consume next available argument, once per occurrence
			for n := 0; n < count; n++ {
				nextArg := p.findNextAvailableArg(args, *i, consumed)
				if nextArg == "" {
					return fmt.Errorf("option -%s requires a value", short)
				}
				p.setString(def, nextArg)
			}
		}
	}

	return nil
}

// setString records a string value, appending for list options
func (p *ParsedOptions) setString(def *OptionDef, value string) {
	if def.Type == OptionTypeStringList {
		p.lists[def.Long] = append(p.lists[def.Long], value)
	} else {
		p.values[def.Long] = value
	}
	p.explicitlySet[def.Long] = true
}

// countValue returns the current value of a counting option, ignoring its default
func (p *ParsedOptions) countValue(option string) int {
	if !p.explicitlySet[option] {
		return 0
	}
	return p.GetInt(option)
}

// findNextIntArg consumes the argument right after startIdx when it is an integer
func (p *ParsedOptions) findNextIntArg(args []string, startIdx int, consumed []bool) string {
	i := startIdx + 1
	if i < len(args) && !consumed[i] {
		if _, err := strconv.Atoi(args[i]); err == nil {
			consumed[i] = true
			return args[i]
		}
	}
	return ""
}

// findNextAvailableArg consumes the first argument after startIdx not already taken
// by this option group. It never reaches past another option.
func (p *ParsedOptions) findNextAvailableArg(args []string, startIdx int, consumed []bool) string {
	i := startIdx + 1
	for i < len(args) && consumed[i] {
		i++
	}
	if i < len(args) && !strings.HasPrefix(args[i], "-") {
		consumed[i] = true
		return args[i]
	}
	return ""
}

// GetString returns a string option value
func (p *ParsedOptions) GetString(option string) string {
	return p.values[option]
}

// GetStrings returns every value given for a list option
func (p *ParsedOptions) GetStrings(option string) []string {
	return p.lists[option]
}

// GetInt returns an integer option value
func (p *ParsedOptions) GetInt(option string) int {
	if val, exists := p.values[option]; exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return 0
}

// GetBool returns a boolean option value
func (p *ParsedOptions) GetBool(option string) bool {
	if val, exists := p.values[option]; exists {
		return val == "true"
	}
	return false
}

// IsSet returns true if an option was explicitly set
func (p *ParsedOptions) IsSet(option string) bool {
	return p.explicitlySet[option]
}

// GetArgs returns non-option arguments
func (p *ParsedOptions) GetArgs() []string {
	return p.args
}

// ShowOptions writes the option table in definition order
func (p *ParsedOptions) ShowOptions(w io.Writer) {
	for _, long := range p.order {
		def := p.defs[long]

		shortOpt := "    "
		if def.Short != "" {
			shortOpt = fmt.Sprintf("-%s, ", def.Short)
		}

		var valueDesc string
		switch def.Type {
		case OptionTypeString, OptionTypeStringList:
			valueDesc = "=VALUE"
		case OptionTypeInt:
			valueDesc = "[=N]"
		}

		fmt.Fprintf(w, "  %s--%s%s%s  %s\n", shortOpt, def.Long, valueDesc,
			strings.Repeat(" ", max(0, 20-len(def.Long)-len(valueDesc))), def.Description)
	}
}
