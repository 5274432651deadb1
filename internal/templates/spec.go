package templates

// SpecTemplateName is the registry name of the starter spec scaffold.
const SpecTemplateName = "spec"

// NewSpecTemplate returns the scaffold for a new SIGMOS spec and a project
// configuration file.
func NewSpecTemplate() *Template {
	return &Template{
		Name:        SpecTemplateName,
		Description: "Starter spec with project configuration",
		Version:     "1.0.0",
		Variables: []*TemplateVariable{
			{
				Name:        "description",
				Description: "What the spec describes",
				Type:        VariableTypeString,
				Default:     "A new SIGMOS spec",
				Prompt:      "Description:",
			},
			{
				Name:        "version",
				Description: "Initial spec version",
				Type:        VariableTypeString,
				Default:     "1.0",
				Prompt:      "Version:",
				Required:    true,
			},
			{
				Name:        "config",
				Description: "Write a sigmos.yaml next to the spec",
				Type:        VariableTypeConfirm,
				Default:     true,
				Prompt:      "Create sigmos.yaml?",
			},
		},
		Files: []*TemplateFile{
			{
				TargetPath: "{{snake .Name}}.sigmos",
				Template:   true,
				Content:    specSource,
			},
			{
				TargetPath: "sigmos.yaml",
				Template:   true,
				Content:    configSource,
				Condition:  "{{.Variables.config}}",
			},
		},
	}
}

const specSource = `spec {{quote (camel .Name)}} v{{.Variables.version}} {
  description: {{quote (index .Variables "description")}}

  inputs:
    name: string
    greeting: string default("Hello")

  computed:
    message: -> "${greeting}, ${name}!"

  constraints:
    ensure: len(name)
}
`

const configSource = `log:
  level: warn
  format: console

plugins:
  enabled: [rest, mcp, cache, js, schedule]

history:
  enabled: false
  path: .sigmos/history.db
  keep: 100
`
