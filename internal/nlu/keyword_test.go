package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptom-triage-agent/internal/dialogue"
)

func TestKeywordExtractorFeverMessage(t *testing.T) {
	e := NewKeywordExtractor()

	intent, entities, err := e.Extract(context.Background(), "宝宝8个月发烧38.5度精神不好", nil)
	require.NoError(t, err)

	assert.Equal(t, dialogue.IntentTriage, intent)
	assert.Equal(t, "fever", entities[dialogue.SlotSymptom])
	assert.Equal(t, "38.5", entities[dialogue.SlotTemperature])
	assert.Equal(t, "8个月", entities[dialogue.SlotAge])
	assert.Equal(t, "poor", entities[dialogue.SlotMentalState])
	_, hasDuration := entities[dialogue.SlotDuration]
	assert.False(t, hasDuration, "months here are an age, not a duration")
}

func TestKeywordExtractorDurationFollowUp(t *testing.T) {
	e := NewKeywordExtractor()

	intent, entities, err := e.Extract(context.Background(), "1天", nil)
	require.NoError(t, err)

	assert.Equal(t, dialogue.IntentSlotFilling, intent)
	assert.Equal(t, "1天", entities[dialogue.SlotDuration])
}

func TestKeywordExtractorIntents(t *testing.T) {
	e := NewKeywordExtractor()

	tests := []struct {
		text string
		want dialogue.Intent
	}{
		{"你好", dialogue.IntentGreeting},
		{"发烧是什么原因", dialogue.IntentConsult},
		{"咳嗽要注意什么", dialogue.IntentCare},
		{"孩子咳嗽吃什么药", dialogue.IntentMedication},
		{"孩子拉肚子了", dialogue.IntentTriage},
		{"孩子3岁", dialogue.IntentSlotFilling},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent, _, err := e.Extract(context.Background(), tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, intent)
		})
	}
}

func TestKeywordExtractorAgeInYears(t *testing.T) {
	e := NewKeywordExtractor()

	_, entities, err := e.Extract(context.Background(), "孩子2岁发烧39度", nil)
	require.NoError(t, err)
	assert.Equal(t, "2岁", entities[dialogue.SlotAge])
	assert.Equal(t, "39", entities[dialogue.SlotTemperature])
}

func TestParseIntentRejectsUnknownLabels(t *testing.T) {
	_, err := parseIntent("DIAGNOSIS")
	assert.Error(t, err)

	intent, err := parseIntent(" triage ")
	require.NoError(t, err)
	assert.Equal(t, dialogue.IntentTriage, intent)
}
