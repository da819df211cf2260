package manifest

import "fmt"

// TemplateType is the closed set of visual element kinds a template can declare.
type TemplateType string

const (
	TemplateText      TemplateType = "Text"
	TemplateMathTex   TemplateType = "MathTex"
	TemplateTex       TemplateType = "Tex"
	TemplateCircle    TemplateType = "Circle"
	TemplateCircleSet TemplateType = "CircleSet"
	TemplateRectangle TemplateType = "Rectangle"
	TemplateArrow     TemplateType = "Arrow"
	TemplateLine      TemplateType = "Line"
	TemplateImage     TemplateType = "Image"
	TemplateVideoClip TemplateType = "VideoClip"
)

// ValidTemplateTypes lists every TemplateType in declaration order.
var ValidTemplateTypes = []TemplateType{
	TemplateText, TemplateMathTex, TemplateTex, TemplateCircle, TemplateCircleSet,
	TemplateRectangle, TemplateArrow, TemplateLine, TemplateImage, TemplateVideoClip,
}

// ParseTemplateType maps a raw string onto the closed template set.
func ParseTemplateType(s string) (TemplateType, error) {
	switch t := TemplateType(s); t {
	case TemplateText, TemplateMathTex, TemplateTex, TemplateCircle, TemplateCircleSet,
		TemplateRectangle, TemplateArrow, TemplateLine, TemplateImage, TemplateVideoClip:
		return t, nil
	}
	return "", fmt.Errorf("unknown template type %q", s)
}

// ContentRule describes which content shape a template type demands.
type ContentRule int

const (
	ContentOptional ContentRule = iota
	ContentString
	ContentArray
)

// ContentRule reports the content shape required by the template type.
func (t TemplateType) ContentRule() ContentRule {
	switch t {
	case TemplateText, TemplateMathTex, TemplateTex:
		return ContentString
	case TemplateCircleSet:
		return ContentArray
	case TemplateCircle, TemplateRectangle, TemplateArrow, TemplateLine, TemplateImage, TemplateVideoClip:
		return ContentOptional
	}
	return ContentOptional
}

// ActionType is the closed set of timed operations a shot can perform.
type ActionType string

const (
	ActionFadeIn       ActionType = "FadeIn"
	ActionFadeOut      ActionType = "FadeOut"
	ActionWrite        ActionType = "Write"
	ActionUnwrite      ActionType = "Unwrite"
	ActionTransform    ActionType = "Transform"
	ActionMorph        ActionType = "Morph"
	ActionMove         ActionType = "Move"
	ActionScale        ActionType = "Scale"
	ActionRotate       ActionType = "Rotate"
	ActionHighlight    ActionType = "Highlight"
	ActionIndicate     ActionType = "Indicate"
	ActionCircumscribe ActionType = "Circumscribe"
	ActionFlash        ActionType = "Flash"
	ActionWiggle       ActionType = "Wiggle"
	ActionWait         ActionType = "Wait"
)

// ValidActionTypes lists every ActionType in declaration order.
var ValidActionTypes = []ActionType{
	ActionFadeIn, ActionFadeOut, ActionWrite, ActionUnwrite, ActionTransform, ActionMorph,
	ActionMove, ActionScale, ActionRotate, ActionHighlight, ActionIndicate,
	ActionCircumscribe, ActionFlash, ActionWiggle, ActionWait,
}

// ParseActionType maps a raw string onto the closed action set.
func ParseActionType(s string) (ActionType, error) {
	switch t := ActionType(s); t {
	case ActionFadeIn, ActionFadeOut, ActionWrite, ActionUnwrite, ActionTransform, ActionMorph,
		ActionMove, ActionScale, ActionRotate, ActionHighlight, ActionIndicate,
		ActionCircumscribe, ActionFlash, ActionWiggle, ActionWait:
		return t, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// RequiresTarget reports whether the action morphs one template into another.
func (t ActionType) RequiresTarget() bool {
	switch t {
	case ActionTransform, ActionMorph:
		return true
	case ActionFadeIn, ActionFadeOut, ActionWrite, ActionUnwrite, ActionMove, ActionScale,
		ActionRotate, ActionHighlight, ActionIndicate, ActionCircumscribe, ActionFlash,
		ActionWiggle, ActionWait:
		return false
	}
	return false
}

// Manifest is the unit of work submitted for rendering.
type Manifest struct {
	VideoID   string     `json:"video_id" validate:"required"`
	Templates []Template `json:"templates" validate:"dive"`
	Shots     []Shot     `json:"shots" validate:"required,min=1,dive"`
}

// Template is a visual element reusable across shots.
type Template struct {
	ID       string       `json:"id" validate:"required"`
	Type     TemplateType `json:"type" validate:"required"`
	Content  Content      `json:"content,omitempty"`
	Style    *Style       `json:"style,omitempty" validate:"omitempty"`
	Position *Position    `json:"position,omitempty" validate:"omitempty"`
	Size     *Size        `json:"size,omitempty" validate:"omitempty"`
}

// Style holds optional presentation attributes.
type Style struct {
	Color      string   `json:"color,omitempty"`
	FontSize   *float64 `json:"font_size,omitempty" validate:"omitempty,gt=0"`
	FontWeight string   `json:"font_weight,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty" validate:"omitempty,min=0,max=1"`
}

// Position places a template on the canvas. Both coordinates are required
// once a position is given.
type Position struct {
	X *float64 `json:"x,omitempty" validate:"required"`
	Y *float64 `json:"y,omitempty" validate:"required"`
}

// Size bounds a template. Both dimensions are required once a size is given.
type Size struct {
	Width  *float64 `json:"width,omitempty" validate:"required,gt=0"`
	Height *float64 `json:"height,omitempty" validate:"required,gt=0"`
}

// Action is a timed operation applied to one or two templates within a shot.
type Action struct {
	Type             ActionType     `json:"type" validate:"required"`
	TemplateID       string         `json:"template_id,omitempty"`
	TargetTemplateID string         `json:"target_template_id,omitempty"`
	Duration         *float64       `json:"duration,omitempty" validate:"omitempty,gt=0"`
	Delay            *float64       `json:"delay,omitempty" validate:"omitempty,gte=0"`
	Params           map[string]any `json:"params,omitempty"`
}

// Shot is one playback segment of the video.
type Shot struct {
	Voiceover      string   `json:"voiceover"`
	Actions        []Action `json:"actions" validate:"dive"`
	Duration       *float64 `json:"duration,omitempty" validate:"omitempty,gt=0"`
	AllowBleedOver bool     `json:"allow_bleed_over"`
}
