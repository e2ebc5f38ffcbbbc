package config

import "testing"

const seedYAML = `
templates:
  - id: label
    data: "<label>{{.text}}</label>"
tasks:
  - id: t1
    title: Label the image
    reward: "1.25"
    timeLimitSeconds: 60
    templateId: label
    templateData: '{"text":"cat"}'
  - title: Second
    reward: "0.000001"
    templateId: label
`

func TestParseTaskSeed(t *testing.T) {
	seed, err := ParseTaskSeed([]byte(seedYAML), 6)
	if err != nil {
		t.Fatalf("ParseTaskSeed: %v", err)
	}
	if len(seed.Templates) != 1 || seed.Templates[0].ID != "label" {
		t.Fatalf("templates = %+v", seed.Templates)
	}
	if len(seed.Tasks) != 2 {
		t.Fatalf("tasks = %+v", seed.Tasks)
	}
	first := seed.Tasks[0]
	if first.ID != "t1" || first.Reward != 1_250_000 || first.TimeLimitSeconds != 60 || first.TemplateData != `{"text":"cat"}` {
		t.Fatalf("first task = %+v", first)
	}
	if seed.Tasks[1].Reward != 1 || seed.Tasks[1].ID != "" {
		t.Fatalf("second task = %+v", seed.Tasks[1])
	}
}

func TestParseTaskSeedBadReward(t *testing.T) {
	if _, err := ParseTaskSeed([]byte("tasks:\n  - title: x\n    reward: lots\n"), 6); err == nil {
		t.Fatal("bad reward accepted")
	}
}
