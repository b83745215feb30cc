package structuredresponse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/errs"
)

func weatherSchema(t *testing.T) *Schema {
	t.Helper()
	s := New("WeatherPrognosis")
	require.NoError(t, s.AddNode("location", KindStr, NodeOpts{Description: "city, country"}))
	require.NoError(t, s.AddNode("current_temperature", KindFloat, NodeOpts{Description: "celsius"}))
	require.NoError(t, s.AddNode("rain_probability_timebound", KindList, NodeOpts{}))
	require.NoError(t, s.AddNode("rain_probability_timebound.chance", KindEnum, NodeOpts{Choices: []string{"low", "medium", "high"}}))
	return s
}

func TestSchemaRoundTrip(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))
	require.NoError(t, s.AddNode("priority", KindInt, NodeOpts{}))
	require.NoError(t, s.AddNode("done", KindBool, NodeOpts{}))
	require.NoError(t, s.AddNode("tasks", KindList, NodeOpts{}))
	require.NoError(t, s.AddNode("tasks.title", KindStr, NodeOpts{}))
	require.NoError(t, s.AddNode("tasks.hours", KindFloat, NodeOpts{}))

	instance := map[string]any{
		"id": "PROJ-001",
		"priority": 3,
		"done": false,
		"tasks": []any{
			map[string]any{"title": "write spec", "hours": 2.5},
			map[string]any{"title": "implement", "hours": 10.0},
		},
	}

	xml := RenderInstance(s, instance)
	parsed, err := FromPrompt(s, xml)
	require.NoError(t, err)
	require.Equal(t, instance, parsed)
}

func TestToPromptRenderingInvariants(t *testing.T) {
	s := weatherSchema(t)
	prompt := s.ToPrompt()
	require.Contains(t, prompt, "<weather_prognosis type='dict'>")
	require.Contains(t, prompt, "type='str'")
	require.Contains(t, prompt, "[city, country - as a str]")
}

func TestFromPromptHappyPath(t *testing.T) {
	s := weatherSchema(t)
	text := `<weather_prognosis location="Annecy, FR">
 <location>Annecy, FR</location>
 <current_temperature>18.7</current_temperature>
 <rain_probability_timebound>
 <li index='0'><chance>low</chance></li>
 <li index='1'><chance>medium</chance></li>
 <li index='2'><chance>high</chance></li>
 </rain_probability_timebound>
</weather_prognosis>`

	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, "Annecy, FR", out["location"])
	require.Equal(t, 18.7, out["current_temperature"])
	list, ok := out["rain_probability_timebound"].([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
}

func TestFromPromptToleratesProseAroundRoot(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))

	text := "Sure, here's the project:\n<project><id>PROJ-001</id></project>\nHope that helps!"
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, "PROJ-001", out["id"])
}

func TestFromPromptToleratesUnclosedLeafAndAttributeNoise(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))
	require.NoError(t, s.AddNode("tasks", KindList, NodeOpts{}))
	require.NoError(t, s.AddNode("tasks.title", KindStr, NodeOpts{}))

	text := `<project><id>PROJ-001<id><tasks, desc='noise'><li index='0'><title>write spec</title></li></tasks></project>`
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, "PROJ-001", out["id"])
	tasks, ok := out["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 1)
	task := tasks[0].(map[string]any)
	require.Equal(t, "write spec", task["title"])
}

func TestFromPromptPreservesStrayTagsInsideText(t *testing.T) {
	s := New("Note")
	require.NoError(t, s.AddNode("body", KindStr, NodeOpts{}))

	text := `<note><body>see issue <ref id='3'/> for context</body></note>`
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, "see issue <ref id='3'/> for context", out["body"])
}

func TestFromPromptNestedLiInsideLiBody(t *testing.T) {
	s := New("Wrapper")
	require.NoError(t, s.AddNode("items", KindList, NodeOpts{ListElemKind: KindStr}))

	text := `<wrapper><items><li index='0'>outer <li>inner noise</li> tail</li></items></wrapper>`
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	items, ok := out["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Contains(t, items[0].(string), "outer")
}

func TestFromPromptMissingFieldIsNull(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))
	require.NoError(t, s.AddNode("owner", KindStr, NodeOpts{}))

	text := `<project><id>PROJ-001</id></project>`
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, "PROJ-001", out["id"])
	require.Nil(t, out["owner"])
}

func TestFromPromptBoolCoercion(t *testing.T) {
	s := New("Flags")
	require.NoError(t, s.AddNode("a", KindBool, NodeOpts{}))
	require.NoError(t, s.AddNode("b", KindBool, NodeOpts{}))
	require.NoError(t, s.AddNode("c", KindBool, NodeOpts{}))
	require.NoError(t, s.AddNode("d", KindBool, NodeOpts{}))

	text := `<flags><a>true</a><b>0</b><c>yes</c><d></d></flags>`
	out, err := FromPrompt(s, text)
	require.NoError(t, err)
	require.Equal(t, true, out["a"])
	require.Equal(t, false, out["b"])
	require.Equal(t, true, out["c"])
	require.Equal(t, false, out["d"])
}

func TestFromPromptIntCoercionFailureRaisesStructuredResponseError(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("priority", KindInt, NodeOpts{}))

	text := `<project><priority>not-a-number</priority></project>`
	_, err := FromPrompt(s, text)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.StructuredResponse))
}

func TestFromStructBuildsEquivalentTree(t *testing.T) {
	type Task struct {
		Title string  `json:"title"`
		Hours float64 `json:"hours"`
	}
	type Project struct {
		ID    string `json:"id"`
		Tasks []Task `json:"tasks"`
	}

	s, err := FromStruct(Project{})
	require.NoError(t, err)
	require.Equal(t, KindStr, s.Root.Elements["id"].Type)
	require.Equal(t, KindList, s.Root.Elements["tasks"].Type)
	require.Equal(t, KindDict, s.Root.Elements["tasks"].ListElem.Type)
}

func TestFromJSONHappyPath(t *testing.T) {
	s := weatherSchema(t)
	text := `{
		"location": "Annecy, FR",
		"current_temperature": 18.7,
		"rain_probability_timebound": [
			{"chance": "low"},
			{"chance": "medium"},
			{"chance": "high"}
		]
	}`

	out, err := FromJSON(s, text)
	require.NoError(t, err)
	require.Equal(t, "Annecy, FR", out["location"])
	require.Equal(t, 18.7, out["current_temperature"])
	list, ok := out["rain_probability_timebound"].([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
}

func TestFromJSONMissingFieldIsNull(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))
	require.NoError(t, s.AddNode("owner", KindStr, NodeOpts{}))

	out, err := FromJSON(s, `{"id": "PROJ-001"}`)
	require.NoError(t, err)
	require.Equal(t, "PROJ-001", out["id"])
	require.Nil(t, out["owner"])
}

func TestFromJSONRejectsMalformedInput(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("id", KindStr, NodeOpts{}))

	_, err := FromJSON(s, `not json`)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.StructuredResponse))
}

func TestFromJSONRejectsWrongFieldType(t *testing.T) {
	s := New("Project")
	require.NoError(t, s.AddNode("priority", KindInt, NodeOpts{}))

	_, err := FromJSON(s, `{"priority": "not-a-number"}`)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.StructuredResponse))
}
