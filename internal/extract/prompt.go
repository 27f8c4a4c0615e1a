package extract

import (
	"fmt"
	"strings"
)

const basePrompt = `You are an expert data analyst and content processor. Your task is to: %s

The content will be provided in a structured format with sections and chunks. The document may also contain images with associated metadata including page numbers, dimensions, and nearby text. Please analyze the content thoroughly and provide your response in the requested format.

Output Format: %s

Guidelines:
1. Understand the content deeply and identify key themes, topics, and important information
2. Restructure the information in a logical, coherent manner
3. Filter out irrelevant or redundant information
4. Maintain accuracy and preserve important details
5. Provide clear, well-organized output
6. When images are present, consider their context and associated text in your analysis
7. Note the relationship between images and surrounding text content

For structured_json format, return a JSON object with the following structure:
{
    "summary": "Brief overview of the content",
    "key_topics": ["topic1", "topic2", "topic3"],
    "important_points": ["point1", "point2", "point3"],
    "structured_content": {
        "section1": "content",
        "section2": "content"
    },
    "images_analysis": {
        "total_images": 0,
        "images_by_page": {"page1": ["image1", "image2"]},
        "image_contexts": ["context1", "context2"]
    },
    "insights": ["insight1", "insight2"],
    "recommendations": ["recommendation1", "recommendation2"]
}

For markdown format, return well-formatted markdown with headers, lists, and proper structure.
For summary format, return a concise summary of the key points.
`

const partPrompt = `
This is part %d of %d of a larger document. Only this part is shown below, together with a short summary of the earlier parts when one exists.
- Analyze only the content of this part; do not invent content from parts you cannot see.
- Use the previous context to keep terminology and topics consistent.
- Keep the same output structure as for a complete document. Results for all parts are combined afterwards.
- In structured_json, "summary" must describe this part so it can serve as context for the next one.
`

// ContentLead introduces the content in every user message.
const ContentLead = "Please process the following content:\n\n"

// ContextLabel introduces the rolling context in a chunked user message.
const ContextLabel = "Previous context (summary of earlier parts):\n"

// SystemPrompt builds the instruction for a single-call analysis.
func SystemPrompt(task string, format Format) string {
	return fmt.Sprintf(basePrompt, task, format)
}

// PartSystemPrompt builds the instruction for piece index (0-based) of total.
func PartSystemPrompt(task string, format Format, index, total int) string {
	return SystemPrompt(task, format) + fmt.Sprintf(partPrompt, index+1, total)
}

// UserPrompt joins the optional rolling context and the content.
func UserPrompt(rolling, content string) string {
	var sb strings.Builder
	if rolling != "" {
		sb.WriteString(ContextLabel)
		sb.WriteString(rolling)
		sb.WriteString("\n\n")
	}
	sb.WriteString(ContentLead)
	sb.WriteString(content)
	return sb.String()
}
